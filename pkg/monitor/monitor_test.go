package monitor

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"

	"github.com/teslashibe/crywatch/internal/log"
	"github.com/teslashibe/crywatch/pkg/camera"
	"github.com/teslashibe/crywatch/pkg/classifier"
	"github.com/teslashibe/crywatch/pkg/classifier/stub"
	"github.com/teslashibe/crywatch/pkg/scheduler"
)

func newTestController(t *testing.T, c classifier.Classifier) (*Controller, *scheduler.Manual) {
	t.Helper()
	sched := scheduler.NewManual()
	return New(c, WithScheduler(sched), WithLogger(log.Discard())), sched
}

// logLines returns a logger writing JSON lines to buf and a function that
// decodes what has been written so far.
func logLines(t *testing.T) (*slog.Logger, func() []map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return logger, func() []map[string]any {
		var out []map[string]any
		for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
			if line == "" {
				continue
			}
			m := map[string]any{}
			if err := sonic.UnmarshalString(line, &m); err != nil {
				t.Fatalf("decode log line %q: %v", line, err)
			}
			out = append(out, m)
		}
		return out
	}
}

// findLog returns the first line at level with the given kind attribute.
func findLog(lines []map[string]any, level, kind string) map[string]any {
	for _, l := range lines {
		if l["level"] == level && l["kind"] == kind {
			return l
		}
	}
	return nil
}

func TestLabelText(t *testing.T) {
	tests := []struct {
		label   Label
		name    string
		display string
	}{
		{LabelUnknown, "unknown", "Not detected yet"},
		{LabelDetected, "detected", "Crying"},
		{LabelNotDetected, "not detected", "Not crying"},
	}
	for _, tt := range tests {
		if tt.label.String() != tt.name || tt.label.DisplayText() != tt.display {
			t.Errorf("%d = %q/%q", tt.label, tt.label.String(), tt.label.DisplayText())
		}
		var back Label
		text, _ := tt.label.MarshalText()
		back.UnmarshalText(text)
		if back != tt.label {
			t.Errorf("text round trip of %v gave %v", tt.label, back)
		}
	}
}

func TestNew_Initial(t *testing.T) {
	c, _ := newTestController(t, classifier.NewMock(true))
	st := c.State()
	if st.Streaming || st.Label != LabelUnknown || st.Display != "Not detected yet" || st.CameraReady {
		t.Errorf("initial state = %+v", st)
	}
}

func TestStart_NoCamera(t *testing.T) {
	c, sched := newTestController(t, classifier.NewMock(true))
	var changes int
	c.OnChange = func(State) { changes++ }

	c.Start()

	if c.Streaming() {
		t.Error("Streaming = true without a camera")
	}
	if len(sched.Tasks()) != 0 {
		t.Errorf("scheduled %d tasks, want 0", len(sched.Tasks()))
	}
	if changes != 0 {
		t.Errorf("OnChange fired %d times", changes)
	}
}

func TestStart_NoCameraLogsWarning(t *testing.T) {
	logger, lines := logLines(t)
	c := New(classifier.NewMock(true), WithScheduler(scheduler.NewManual()), WithLogger(logger))

	c.Start()

	l := findLog(lines(), "WARN", "camera_not_ready")
	if l == nil {
		t.Fatalf("no camera_not_ready warning in %v", lines())
	}
	if l["error"] != ErrCameraNotReady.Error() {
		t.Errorf("error attr = %v", l["error"])
	}
}

func TestTick_FailuresAreLogged(t *testing.T) {
	tests := []struct {
		kind string
		cam  *camera.Mock
		cl   *classifier.Mock
	}{
		{"response_parse", camera.NewMock(), classifier.MockError(classifier.ErrMalformedResponse)},
		{"network", camera.NewMock(), classifier.MockError(classifier.ErrNetwork)},
		{"api", camera.NewMock(), classifier.MockError(&classifier.APIError{StatusCode: 500})},
		{"capture", camera.MockFailing(errors.New("sensor unplugged")), classifier.NewMock(true)},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			logger, lines := logLines(t)
			sched := scheduler.NewManual()
			c := New(tt.cl, WithScheduler(sched), WithLogger(logger))
			c.SetCamera(tt.cam)
			c.Start()
			sched.Fire()

			l := findLog(lines(), "ERROR", tt.kind)
			if l == nil {
				t.Fatalf("no %s error in %v", tt.kind, lines())
			}
			if l["session"] == nil || l["tick"] != float64(1) {
				t.Errorf("missing session/tick attrs: %v", l)
			}
		})
	}
}

func TestStart_SchedulesOneTask(t *testing.T) {
	c, sched := newTestController(t, classifier.NewMock(true))
	c.SetCamera(camera.NewMock())

	c.Start()
	c.Start()

	if !c.Streaming() {
		t.Fatal("Streaming = false after Start")
	}
	tasks := sched.Tasks()
	if len(tasks) != 1 {
		t.Fatalf("scheduled %d tasks, want 1", len(tasks))
	}
	if tasks[0].Period != DefaultInterval {
		t.Errorf("Period = %v, want %v", tasks[0].Period, DefaultInterval)
	}
	if c.State().SessionID == "" {
		t.Error("no session id while streaming")
	}
}

func TestTick_UpdatesLabel(t *testing.T) {
	answers := []bool{true, false, true}
	var i int
	cl := &classifier.Mock{ClassifyFunc: func(ctx context.Context, p *camera.Photo) (*classifier.Result, error) {
		r := &classifier.Result{EmotionDetected: answers[i]}
		i++
		return r, nil
	}}
	c, sched := newTestController(t, cl)
	c.SetCamera(camera.NewMock())
	c.Start()

	want := []Label{LabelDetected, LabelNotDetected, LabelDetected}
	for n, w := range want {
		sched.Fire()
		if got := c.Label(); got != w {
			t.Errorf("after tick %d label = %v, want %v", n+1, got, w)
		}
	}
}

func TestTick_UsesStreamingCapture(t *testing.T) {
	cam := camera.NewMock()
	c, sched := newTestController(t, classifier.NewMock(false))
	c.SetCamera(cam)
	c.Start()
	sched.Fire()

	caps := cam.Captures()
	if len(caps) != 1 {
		t.Fatalf("captures = %d, want 1", len(caps))
	}
	if caps[0] != camera.StreamingCapture {
		t.Errorf("capture options = %+v, want %+v", caps[0], camera.StreamingCapture)
	}
}

func TestTick_CaptureFailureKeepsLabel(t *testing.T) {
	cam := camera.NewMock()
	cl := classifier.NewMock(true)
	c, sched := newTestController(t, cl)
	c.SetCamera(cam)
	c.Start()
	sched.Fire()

	cam.TakePictureFunc = func(ctx context.Context, opts camera.CaptureOptions) (*camera.Photo, error) {
		return nil, errors.New("sensor unplugged")
	}
	sched.Fire()

	if c.Label() != LabelDetected {
		t.Errorf("label = %v, want detected", c.Label())
	}
	if !c.Streaming() {
		t.Error("capture failure stopped streaming")
	}
	if cl.CallCount() != 1 {
		t.Errorf("classifier called %d times, want 1", cl.CallCount())
	}
	if s := c.Stats(); s.CaptureFailures != 1 || s.Ticks != 2 {
		t.Errorf("stats = %+v", s)
	}
}

func TestTick_ClassifyFailureKeepsLabel(t *testing.T) {
	errs := []error{
		classifier.ErrNetwork,
		classifier.ErrMalformedResponse,
		&classifier.APIError{StatusCode: 500, Message: "Failed to detect emotion"},
	}
	for _, failure := range errs {
		t.Run(failureKind(failure), func(t *testing.T) {
			fail := false
			cl := &classifier.Mock{ClassifyFunc: func(ctx context.Context, p *camera.Photo) (*classifier.Result, error) {
				if fail {
					return nil, failure
				}
				return &classifier.Result{EmotionDetected: false}, nil
			}}
			c, sched := newTestController(t, cl)
			c.SetCamera(camera.NewMock())
			c.Start()
			sched.Fire()

			fail = true
			sched.Fire()
			sched.Fire()

			if c.Label() != LabelNotDetected {
				t.Errorf("label = %v, want not detected", c.Label())
			}
			if !c.Streaming() {
				t.Error("classify failure stopped streaming")
			}
			if s := c.Stats(); s.ClassifyFailures != 2 {
				t.Errorf("ClassifyFailures = %d, want 2", s.ClassifyFailures)
			}
		})
	}
}

func TestTick_FailureBeforeFirstResult(t *testing.T) {
	c, sched := newTestController(t, classifier.MockError(classifier.ErrNetwork))
	c.SetCamera(camera.NewMock())
	c.Start()
	sched.Fire()

	if c.Label() != LabelUnknown || c.State().Display != "Not detected yet" {
		t.Errorf("label = %v, want unknown", c.Label())
	}
}

func TestStop(t *testing.T) {
	cl := classifier.NewMock(true)
	c, sched := newTestController(t, cl)
	c.SetCamera(camera.NewMock())
	c.Start()
	sched.Fire()

	c.Stop()
	sched.Advance(10 * DefaultInterval)

	if c.Streaming() {
		t.Error("Streaming = true after Stop")
	}
	if len(sched.Active()) != 0 {
		t.Errorf("%d tasks still active", len(sched.Active()))
	}
	if cl.CallCount() != 1 {
		t.Errorf("classifier called %d times, want 1", cl.CallCount())
	}
	if c.Label() != LabelDetected {
		t.Errorf("Stop changed label to %v", c.Label())
	}
}

func TestStop_Idempotent(t *testing.T) {
	c, _ := newTestController(t, classifier.NewMock(true))
	var changes int
	c.OnChange = func(State) { changes++ }

	c.Stop()
	c.Stop()
	if c.Streaming() || changes != 0 {
		t.Errorf("Streaming = %v, changes = %d", c.Streaming(), changes)
	}
}

func TestRestart(t *testing.T) {
	c, sched := newTestController(t, classifier.NewMock(false))
	c.SetCamera(camera.NewMock())

	c.Start()
	first := c.State().SessionID
	c.Stop()
	c.Start()
	second := c.State().SessionID

	if len(sched.Active()) != 1 || len(sched.Tasks()) != 2 {
		t.Errorf("active = %d, total = %d", len(sched.Active()), len(sched.Tasks()))
	}
	if first == second {
		t.Error("restart reused the session id")
	}

	sched.Tasks()[0].Stop()
	sched.Fire()
	if c.Label() != LabelNotDetected {
		t.Errorf("label = %v after restarted tick", c.Label())
	}
}

func TestToggle(t *testing.T) {
	c, _ := newTestController(t, classifier.NewMock(true))
	c.SetCamera(camera.NewMock())

	c.Toggle()
	if !c.Streaming() {
		t.Fatal("Toggle did not start")
	}
	c.Toggle()
	if c.Streaming() {
		t.Fatal("Toggle did not stop")
	}
}

func TestDetachCamera(t *testing.T) {
	cl := classifier.NewMock(true)
	c, sched := newTestController(t, cl)
	c.SetCamera(camera.NewMock())
	c.Start()

	c.SetCamera(nil)
	sched.Fire()

	if cl.CallCount() != 0 {
		t.Errorf("classified without a camera")
	}
	if !c.Streaming() {
		t.Error("detaching stopped streaming")
	}
}

func TestOnChangeAndOnPhoto(t *testing.T) {
	c, sched := newTestController(t, classifier.NewMock(true))
	c.SetCamera(camera.NewMock())

	var states []State
	var photos int
	c.OnChange = func(st State) { states = append(states, st) }
	c.OnPhoto = func(*camera.Photo) { photos++ }

	c.Start()
	sched.Fire()
	c.Stop()

	if len(states) != 3 {
		t.Fatalf("OnChange fired %d times, want 3", len(states))
	}
	if !states[0].Streaming || states[0].Label != LabelUnknown {
		t.Errorf("start state = %+v", states[0])
	}
	if states[1].Label != LabelDetected || states[1].Display != "Crying" {
		t.Errorf("tick state = %+v", states[1])
	}
	if states[2].Streaming {
		t.Errorf("stop state = %+v", states[2])
	}
	if photos != 1 {
		t.Errorf("OnPhoto fired %d times, want 1", photos)
	}
}

func TestTick_SkipsWhileInFlight(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	cl := &classifier.Mock{ClassifyFunc: func(ctx context.Context, p *camera.Photo) (*classifier.Result, error) {
		entered <- struct{}{}
		<-release
		return &classifier.Result{EmotionDetected: true}, nil
	}}
	c, sched := newTestController(t, cl)
	c.SetCamera(camera.NewMock())
	c.Start()

	done := make(chan struct{})
	go func() {
		sched.Fire()
		close(done)
	}()
	<-entered

	sched.Fire()
	sched.Fire()
	close(release)
	<-done

	if cl.CallCount() != 1 {
		t.Errorf("classifier called %d times, want 1", cl.CallCount())
	}
	if s := c.Stats(); s.Skipped != 2 {
		t.Errorf("Skipped = %d, want 2", s.Skipped)
	}
	if c.Label() != LabelDetected {
		t.Errorf("label = %v", c.Label())
	}
}

func TestStop_CancelsInFlight(t *testing.T) {
	entered := make(chan struct{})
	cl := &classifier.Mock{ClassifyFunc: func(ctx context.Context, p *camera.Photo) (*classifier.Result, error) {
		close(entered)
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	c, sched := newTestController(t, cl)
	c.SetCamera(camera.NewMock())
	c.Start()

	done := make(chan struct{})
	go func() {
		sched.Fire()
		close(done)
	}()
	<-entered
	c.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("in-flight tick was not cancelled by Stop")
	}
	if c.Label() != LabelUnknown {
		t.Errorf("label = %v, want unknown", c.Label())
	}
	if c.Stats().ClassifyFailures != 1 {
		t.Errorf("stats = %+v", c.Stats())
	}
}

func TestTick_Timeout(t *testing.T) {
	cl := &classifier.Mock{ClassifyFunc: func(ctx context.Context, p *camera.Photo) (*classifier.Result, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	sched := scheduler.NewManual()
	c := New(cl, WithScheduler(sched), WithTickTimeout(20*time.Millisecond), WithLogger(log.Discard()))
	c.SetCamera(camera.NewMock())
	c.Start()
	sched.Fire()

	if !c.Streaming() || c.Stats().ClassifyFailures != 1 {
		t.Errorf("streaming = %v, stats = %+v", c.Streaming(), c.Stats())
	}
}

func TestFailureKind(t *testing.T) {
	tests := map[string]error{
		"camera_not_ready": ErrCameraNotReady,
		"capture":          ErrCapture,
		"network":          classifier.ErrNetwork,
		"response_parse":   classifier.ErrMalformedResponse,
		"api":              &classifier.APIError{StatusCode: 400},
		"cancelled":        context.Canceled,
		"unknown":          errors.New("x"),
	}
	for want, err := range tests {
		if got := failureKind(err); got != want {
			t.Errorf("failureKind(%v) = %q, want %q", err, got, want)
		}
	}
}

func TestWallClockLoop(t *testing.T) {
	var mu sync.Mutex
	var calls int
	cl := &classifier.Mock{ClassifyFunc: func(ctx context.Context, p *camera.Photo) (*classifier.Result, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return &classifier.Result{EmotionDetected: true}, nil
	}}
	c := New(cl, WithInterval(10*time.Millisecond), WithLogger(log.Discard()))
	c.SetCamera(camera.NewMock())
	c.Start()

	deadline := time.Now().Add(2 * time.Second)
	for c.Label() != LabelDetected && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	c.Stop()
	if c.Label() != LabelDetected {
		t.Fatal("loop never produced a result")
	}
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	after := calls
	mu.Unlock()
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if calls != after {
		t.Errorf("classifier called %d more times after Stop", calls-after)
	}
}

func TestEndToEnd_AgainstStub(t *testing.T) {
	s := stub.New(stub.Sequence(true, false), log.Discard())
	srv := httptest.NewServer(s)
	defer srv.Close()

	cl, err := classifier.NewClient(classifier.WithBaseURL(srv.URL+"/"), classifier.WithLogger(log.Discard()))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	c, sched := newTestController(t, cl)
	c.SetCamera(camera.NewMock())
	c.Start()

	sched.Fire()
	if c.Label() != LabelDetected {
		t.Errorf("after first tick label = %v", c.Label())
	}
	sched.Fire()
	if c.Label() != LabelNotDetected {
		t.Errorf("after second tick label = %v", c.Label())
	}
	c.Stop()

	if s.Received() != 2 {
		t.Errorf("stub received %d photos, want 2", s.Received())
	}
}

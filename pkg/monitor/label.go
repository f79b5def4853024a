package monitor

// Label is the displayed detection result.
type Label int

const (
	// LabelUnknown is shown until the first successful classification.
	LabelUnknown Label = iota
	// LabelDetected means the last classification saw crying.
	LabelDetected
	// LabelNotDetected means the last classification saw no crying.
	LabelNotDetected
)

// labelFor maps the classifier's boolean onto a Label.
func labelFor(detected bool) Label {
	if detected {
		return LabelDetected
	}
	return LabelNotDetected
}

// String returns the machine-readable name.
func (l Label) String() string {
	switch l {
	case LabelDetected:
		return "detected"
	case LabelNotDetected:
		return "not detected"
	default:
		return "unknown"
	}
}

// DisplayText returns the text shown to the user.
func (l Label) DisplayText() string {
	switch l {
	case LabelDetected:
		return "Crying"
	case LabelNotDetected:
		return "Not crying"
	default:
		return "Not detected yet"
	}
}

// MarshalText encodes the label as its String form.
func (l Label) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText parses the String form. Unknown text decodes to
// LabelUnknown.
func (l *Label) UnmarshalText(text []byte) error {
	switch string(text) {
	case "detected":
		*l = LabelDetected
	case "not detected":
		*l = LabelNotDetected
	default:
		*l = LabelUnknown
	}
	return nil
}

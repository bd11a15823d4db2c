package features

// Analysis parameters. These match the front end the classifier was trained
// against; changing any of them invalidates the model.
const (
	FrameLength = 2048
	HopLength   = 512
	NumMels     = 128
	TopDB       = 80.0

	// Floor applied to power values before conversion to decibels.
	AminPower = 1e-10
	// Samples with magnitude at or below this are treated as zero.
	ZeroThreshold = 1e-10

	ChromaCenterOctave = 5.0
	ChromaOctaveWidth  = 2.0
)

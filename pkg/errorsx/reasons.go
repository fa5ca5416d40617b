package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	// ReasonConfig marks missing or placeholder credentials and invalid settings.
	// It is always raised before any network I/O.
	ReasonConfig ReasonCode = "config_error"

	ReasonTransport     ReasonCode = "transport_error"
	ReasonTransportDial ReasonCode = "transport_dial"
	ReasonTransportSend ReasonCode = "transport_send"
	ReasonTransportRecv ReasonCode = "transport_recv"

	ReasonRemote ReasonCode = "remote_error"

	ReasonAudioDevice ReasonCode = "audio_device"
	ReasonAudioRead   ReasonCode = "audio_read"
)

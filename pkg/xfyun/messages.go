package xfyun

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Frame status values on the wire.
const (
	StatusFirst    = 0
	StatusContinue = 1
	StatusLast     = 2
)

const (
	AudioFormat   = "audio/L16;rate=16000"
	AudioEncoding = "raw"
)

// FrameKind is the position of a frame in the upload stream.
type FrameKind int

const (
	FrameFirst FrameKind = iota
	FrameContinue
	FrameLast
)

func (k FrameKind) String() string {
	switch k {
	case FrameFirst:
		return "first"
	case FrameContinue:
		return "continue"
	case FrameLast:
		return "last"
	default:
		return "unknown"
	}
}

// Status returns the data.status value for the kind.
func (k FrameKind) Status() int {
	switch k {
	case FrameFirst:
		return StatusFirst
	case FrameLast:
		return StatusLast
	default:
		return StatusContinue
	}
}

// Frame is one protocol message worth of audio.
type Frame struct {
	Kind    FrameKind
	Payload []byte
	Seq     int
}

// BusinessParams are sent once, in the first frame only.
type BusinessParams struct {
	Language string `json:"language" mapstructure:"language"`
	Domain   string `json:"domain" mapstructure:"domain"`
	Accent   string `json:"accent" mapstructure:"accent"`
	VInfo    int    `json:"vinfo" mapstructure:"vinfo"`
	// VADEOS is the server-side end-of-speech silence in milliseconds.
	VADEOS int    `json:"vad_eos" mapstructure:"vad_eos"`
	DWA    string `json:"dwa,omitempty" mapstructure:"dwa"`
	// PTT 0 suppresses punctuation.
	PTT   int    `json:"ptt" mapstructure:"ptt"`
	RLang string `json:"rlang,omitempty" mapstructure:"rlang"`
	// NuNum 0 keeps numbers as spoken words.
	NuNum int `json:"nunum" mapstructure:"nunum"`
}

// DefaultBusinessParams returns Mandarin dictation with punctuation and
// number conversion disabled and a 5 s server-side end-of-speech.
func DefaultBusinessParams() BusinessParams {
	return BusinessParams{
		Language: "zh_cn",
		Domain:   "iat",
		Accent:   "mandarin",
		VInfo:    1,
		VADEOS:   5000,
		DWA:      "wpgs",
		PTT:      0,
		RLang:    "zh-cn",
		NuNum:    0,
	}
}

type commonParams struct {
	AppID string `json:"app_id"`
}

type audioData struct {
	Status   int    `json:"status"`
	Format   string `json:"format"`
	Audio    string `json:"audio"`
	Encoding string `json:"encoding"`
}

type request struct {
	Common   *commonParams   `json:"common,omitempty"`
	Business *BusinessParams `json:"business,omitempty"`
	Data     audioData       `json:"data"`
}

// EncodeFrame renders a frame as its JSON message. Common and business
// parameters are attached to the first frame only.
func EncodeFrame(f Frame, appID string, business BusinessParams) ([]byte, error) {
	req := request{
		Data: audioData{
			Status:   f.Kind.Status(),
			Format:   AudioFormat,
			Audio:    base64.StdEncoding.EncodeToString(f.Payload),
			Encoding: AudioEncoding,
		},
	}
	if f.Kind == FrameFirst {
		req.Common = &commonParams{AppID: appID}
		req.Business = &business
	}
	return json.Marshal(req)
}

// Response is an inbound IAT message.
type Response struct {
	Code    int           `json:"code"`
	Message string        `json:"message"`
	SID     string        `json:"sid"`
	Data    *ResponseData `json:"data"`
}

type ResponseData struct {
	Status int     `json:"status"`
	Result *Result `json:"result"`
}

type Result struct {
	SN  int    `json:"sn"`
	LS  bool   `json:"ls"`
	WS  []Word `json:"ws"`
	PGS string `json:"pgs,omitempty"`
}

type Word struct {
	BG int         `json:"bg"`
	CW []Candidate `json:"cw"`
}

type Candidate struct {
	W string `json:"w"`
}

// DecodeResponse parses an inbound message. Missing data or result fields
// are not an error; callers check Data and Data.Result.
func DecodeResponse(raw []byte) (Response, error) {
	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Response{}, fmt.Errorf("decode iat response: %w", err)
	}
	return resp, nil
}

// Text concatenates every candidate word in arrival order.
func (r Response) Text() string {
	if r.Data == nil || r.Data.Result == nil {
		return ""
	}
	var b strings.Builder
	for _, w := range r.Data.Result.WS {
		for _, c := range w.CW {
			b.WriteString(c.W)
		}
	}
	return b.String()
}

// Final reports whether the server signalled the end of recognition.
func (r Response) Final() bool {
	return r.Data != nil && r.Data.Status == StatusLast
}

// RemoteError is a non-zero code returned by the service.
type RemoteError struct {
	Code    int
	Message string
	SID     string
}

func (e *RemoteError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "unknown error"
	}
	if e.SID != "" {
		return fmt.Sprintf("iat error %d: %s (sid %s)", e.Code, msg, e.SID)
	}
	return fmt.Sprintf("iat error %d: %s", e.Code, msg)
}

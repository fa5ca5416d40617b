package trigger

import (
	"strings"
	"time"
)

// Verdict is the outcome of one policy evaluation.
type Verdict int

const (
	Continue Verdict = iota
	Keyword
	SilenceEnd
	HardTimeout
)

func (v Verdict) String() string {
	switch v {
	case Continue:
		return "continue"
	case Keyword:
		return "keyword"
	case SilenceEnd:
		return "silence_end"
	case HardTimeout:
		return "hard_timeout"
	default:
		return "unknown"
	}
}

// Decision carries a verdict and, for keyword hits, the keyword matched.
type Decision struct {
	Verdict Verdict
	Keyword string
}

// Done reports whether the session should end.
func (d Decision) Done() bool { return d.Verdict != Continue }

// Policy decides when a session has heard enough. It is not safe for
// concurrent use; the sender loop owns it.
type Policy struct {
	cfg        Config
	keywords   []string
	hasSpeech  bool
	silenceRun int
	decision   Decision
}

func New(cfg Config) *Policy {
	cfg = cfg.WithDefaults()
	keywords := make([]string, 0, len(cfg.Keywords))
	for _, kw := range cfg.Keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			keywords = append(keywords, kw)
		}
	}
	return &Policy{cfg: cfg, keywords: keywords}
}

func (p *Policy) Config() Config     { return p.cfg }
func (p *Policy) HasSpeech() bool    { return p.hasSpeech }
func (p *Policy) SilenceRun() int    { return p.silenceRun }
func (p *Policy) Decision() Decision { return p.decision }

// Observe evaluates one audio frame. The order is fixed: adaptive threshold,
// silence run, keyword, natural end of speech, hard cap. The first terminal
// decision is latched and returned by every later call.
func (p *Policy) Observe(volume int, elapsed time.Duration, transcript string) Decision {
	if p.decision.Done() {
		return p.decision
	}

	threshold := p.cfg.HighThreshold
	if p.hasSpeech {
		threshold = p.cfg.LowThreshold
	}
	if volume < threshold {
		p.silenceRun++
	} else {
		p.silenceRun = 0
		p.hasSpeech = true
	}

	if d := p.matchKeyword(transcript); d.Done() {
		return p.latch(d)
	}
	if p.hasSpeech && p.silenceRun > p.cfg.MaxSilenceFrames && elapsed > p.cfg.MinSpeechDuration {
		return p.latch(Decision{Verdict: SilenceEnd})
	}
	if elapsed >= p.cfg.HardDeadline {
		return p.latch(Decision{Verdict: HardTimeout})
	}
	return Decision{Verdict: Continue}
}

// ObserveTranscript runs only the keyword check. It lets a keyword that
// arrives between audio frames end the session without waiting for the next one.
func (p *Policy) ObserveTranscript(transcript string) Decision {
	if p.decision.Done() {
		return p.decision
	}
	if d := p.matchKeyword(transcript); d.Done() {
		return p.latch(d)
	}
	return Decision{Verdict: Continue}
}

func (p *Policy) matchKeyword(transcript string) Decision {
	if transcript == "" || len(p.keywords) == 0 {
		return Decision{Verdict: Continue}
	}
	text := strings.ToLower(transcript)
	for _, kw := range p.keywords {
		if strings.Contains(text, kw) {
			return Decision{Verdict: Keyword, Keyword: kw}
		}
	}
	return Decision{Verdict: Continue}
}

func (p *Policy) latch(d Decision) Decision {
	p.decision = d
	return d
}

package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/veritas/internal/model"
)

const (
	defaultClassifierTimeout = 30 * time.Second
	maxClassifierClaimChars  = 512
	maxClassifierEvidence    = 5
)

// ErrClassifierTimeout is returned when the classifier process is killed for running too long
var ErrClassifierTimeout = errors.New("classifier timed out")

// Classifier is a pre-trained claim/evidence classifier
type Classifier interface {
	Classify(ctx context.Context, in ClassifierInput) (*ClassifierOutput, error)
}

// ClassifierInput is written to the classifier as JSON
type ClassifierInput struct {
	Claim    string               `json:"claim"`
	Category string               `json:"category,omitempty"`
	Evidence []ClassifierEvidence `json:"evidence"`
}

// ClassifierEvidence is the evidence shape the classifier reads
type ClassifierEvidence struct {
	ID        string  `json:"id"`
	Source    string  `json:"source"`
	Title     string  `json:"title,omitempty"`
	Snippet   string  `json:"snippet"`
	URL       string  `json:"url,omitempty"`
	Relevance float64 `json:"relevance"`
}

// ClassifierOutput is the classifier's JSON reply
type ClassifierOutput struct {
	Verdict          string           `json:"verdict"`
	Confidence       float64          `json:"confidence"`
	Reasoning        string           `json:"reasoning"`
	EvidenceAnalysis []EvidenceStance `json:"evidence_analysis"`
}

// EvidenceStance is the classifier's judgement of one evidence item
type EvidenceStance struct {
	EvidenceID EvidenceRef `json:"evidence_id"`
	Stance     string      `json:"stance"`
	Confidence float64     `json:"confidence"`
	Source     string      `json:"source"`
}

// EvidenceRef accepts either a string ID or a numeric index
type EvidenceRef string

func (r *EvidenceRef) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*r = EvidenceRef(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("evidence_id: %w", err)
	}
	*r = EvidenceRef(n.String())
	return nil
}

// NewClassifierInput builds the classifier payload: claim truncated to 512
// characters, at most five evidence items.
func NewClassifierInput(req Request) ClassifierInput {
	claim := req.Claim
	if r := []rune(claim); len(r) > maxClassifierClaimChars {
		claim = string(r[:maxClassifierClaimChars])
	}

	in := ClassifierInput{Claim: claim, Category: string(req.Category), Evidence: []ClassifierEvidence{}}
	for i, ev := range req.Evidence {
		if i == maxClassifierEvidence {
			break
		}
		id := ev.ID
		if id == "" {
			id = strconv.Itoa(i)
		}
		in.Evidence = append(in.Evidence, ClassifierEvidence{
			ID:        id,
			Source:    ev.Source,
			Title:     ev.Title,
			Snippet:   ev.Snippet,
			URL:       ev.URL,
			Relevance: ev.Relevance,
		})
	}
	return in
}

// ProcessClassifier runs a fresh classifier subprocess per call. The payload is
// written to stdin and one JSON object is read from stdout.
type ProcessClassifier struct {
	command []string
	timeout time.Duration
}

// NewProcessClassifier creates a classifier over the given command line
func NewProcessClassifier(command []string, timeout time.Duration) (*ProcessClassifier, error) {
	if len(command) == 0 || strings.TrimSpace(command[0]) == "" {
		return nil, errors.New("classifier command is empty")
	}
	if timeout <= 0 {
		timeout = defaultClassifierTimeout
	}
	return &ProcessClassifier{command: command, timeout: timeout}, nil
}

func (p *ProcessClassifier) Classify(ctx context.Context, in ClassifierInput) (*ClassifierOutput, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("encode classifier input: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.command[0], p.command[1:]...)
	cmd.WaitDelay = time.Second
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrClassifierTimeout, p.timeout)
		}
		return nil, fmt.Errorf("classifier failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	var out ClassifierOutput
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &out); err != nil {
		return nil, fmt.Errorf("decode classifier output: %w", err)
	}
	if out.Verdict == "" {
		return nil, errors.New("classifier output has no verdict")
	}
	return &out, nil
}

// StaticClassifier is an in-process classifier, typically a fixed reply in tests
type StaticClassifier struct {
	Fn func(ctx context.Context, in ClassifierInput) (*ClassifierOutput, error)
}

func (s StaticClassifier) Classify(ctx context.Context, in ClassifierInput) (*ClassifierOutput, error) {
	if s.Fn == nil {
		return &ClassifierOutput{Verdict: string(model.NotEnoughInfo)}, nil
	}
	return s.Fn(ctx, in)
}

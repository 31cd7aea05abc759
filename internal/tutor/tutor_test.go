package tutor_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/p-n-ai/taleem/internal/ai"
	"github.com/p-n-ai/taleem/internal/curriculum"
	"github.com/p-n-ai/taleem/internal/tutor"
)

var motion = tutor.Request{
	UserID:   "ayesha",
	Path:     curriculum.SubjectPath{Board: "Punjab Board", Grade: "Class 9", Subject: "Physics"},
	Topic:    "Motion",
	Depth:    tutor.DepthDetailed,
	Language: tutor.RomanUrdu,
}

func TestParseDepth(t *testing.T) {
	tests := []struct {
		in      string
		want    tutor.Depth
		wantErr bool
	}{
		{"", tutor.DepthSummary, false},
		{"summary", tutor.DepthSummary, false},
		{"Detailed", tutor.DepthDetailed, false},
		{" deep ", tutor.DepthDeep, false},
		{"exhaustive", "", true},
	}
	for _, tt := range tests {
		got, err := tutor.ParseDepth(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseDepth(%q) = %q, %v; want %q, err %v", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestParseLanguage(t *testing.T) {
	tests := []struct {
		in      string
		want    tutor.Language
		wantErr bool
	}{
		{"", tutor.English, false},
		{"English", tutor.English, false},
		{"roman urdu", tutor.RomanUrdu, false},
		{"Urdu", tutor.Urdu, false},
		{"en", tutor.English, false},
		{"ur-Latn", tutor.RomanUrdu, false},
		{"ur", tutor.Urdu, false},
		{"fr", "", true},
		{"Klingon!", "", true},
	}
	for _, tt := range tests {
		got, err := tutor.ParseLanguage(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseLanguage(%q) = %q, %v; want %q, err %v", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestLanguageTag(t *testing.T) {
	if got := tutor.RomanUrdu.Tag().String(); got != "ur-Latn" {
		t.Errorf("RomanUrdu.Tag() = %q, want ur-Latn", got)
	}
	if got := tutor.Urdu.Tag().String(); got != "ur" {
		t.Errorf("Urdu.Tag() = %q, want ur", got)
	}
}

func TestMatchLanguage(t *testing.T) {
	tests := []struct {
		header string
		want   tutor.Language
	}{
		{"", tutor.English},
		{"en-US,en;q=0.9", tutor.English},
		{"ur;q=0.9,en;q=0.5", tutor.Urdu},
		{"ur-Latn", tutor.RomanUrdu},
		{"de-DE", tutor.English},
		{";;;", tutor.English},
	}
	for _, tt := range tests {
		if got := tutor.MatchLanguage(tt.header); got != tt.want {
			t.Errorf("MatchLanguage(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestExplain(t *testing.T) {
	mock := ai.NewMockProvider("### 1. In-Depth Analysis\n...")
	tu := tutor.New(mock)

	got, err := tu.Explain(context.Background(), motion)
	if err != nil {
		t.Fatalf("Explain() error = %v", err)
	}
	if !strings.HasPrefix(got, "### 1.") {
		t.Errorf("Explain() = %q", got)
	}

	req := mock.LastRequest
	if req.Task != ai.TaskExplain || req.UserID != "ayesha" {
		t.Errorf("request = %+v", req)
	}
	prompt := req.Messages[0].Content
	for _, want := range []string{"Motion", "Class 9", "Common Misconceptions", "Roman Urdu"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestExplain_DepthChangesStructure(t *testing.T) {
	mock := ai.NewMockProvider("ok")
	tu := tutor.New(mock)

	prompts := map[tutor.Depth]string{}
	for _, d := range []tutor.Depth{tutor.DepthSummary, tutor.DepthDetailed, tutor.DepthDeep} {
		req := motion
		req.Depth = d
		if _, err := tu.Explain(context.Background(), req); err != nil {
			t.Fatalf("Explain(%s) error = %v", d, err)
		}
		prompts[d] = mock.LastRequest.Messages[0].Content
	}
	if !strings.Contains(prompts[tutor.DepthSummary], "Simple Definition") {
		t.Error("summary prompt should ask for a simple definition")
	}
	if !strings.Contains(prompts[tutor.DepthDeep], "Abstract") {
		t.Error("deep prompt should ask for an abstract")
	}
	if mock.LastRequest.MaxTokens <= 1024 {
		t.Errorf("deep MaxTokens = %d, want a larger allowance", mock.LastRequest.MaxTokens)
	}
}

func TestStreamExplain(t *testing.T) {
	tu := tutor.New(ai.NewMockProvider("Motion is a change in position"))

	ch, err := tu.StreamExplain(context.Background(), motion)
	if err != nil {
		t.Fatalf("StreamExplain() error = %v", err)
	}
	got, err := ai.Collect(ch)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if got != "Motion is a change in position" {
		t.Errorf("streamed = %q", got)
	}
}

func TestExample(t *testing.T) {
	mock := ai.NewMockProvider("A rickshaw braking suddenly...")
	tu := tutor.New(mock)

	got, err := tu.Example(context.Background(), motion)
	if err != nil || got == "" {
		t.Fatalf("Example() = %q, %v", got, err)
	}
	if mock.LastRequest.Task != ai.TaskExample {
		t.Errorf("Task = %v, want example", mock.LastRequest.Task)
	}
}

func TestFollowUp(t *testing.T) {
	mock := ai.NewMockProvider("Velocity has a direction.")
	tu := tutor.New(mock)

	got, err := tu.FollowUp(context.Background(), motion, "Earlier explanation", "  How is velocity different from speed? ")
	if err != nil {
		t.Fatalf("FollowUp() error = %v", err)
	}
	if got != "Velocity has a direction." {
		t.Errorf("FollowUp() = %q", got)
	}

	msgs := mock.LastRequest.Messages
	if len(msgs) != 3 {
		t.Fatalf("messages = %d, want system + explanation + question", len(msgs))
	}
	if msgs[1].Role != ai.RoleAssistant || msgs[1].Content != "Earlier explanation" {
		t.Errorf("explanation message = %+v", msgs[1])
	}
	if msgs[2].Content != "How is velocity different from speed?" {
		t.Errorf("question = %q", msgs[2].Content)
	}
}

func TestFollowUp_EmptyQuestion(t *testing.T) {
	mock := ai.NewMockProvider("unused")
	tu := tutor.New(mock)

	if _, err := tu.FollowUp(context.Background(), motion, "", "   "); !errors.Is(err, tutor.ErrEmptyQuestion) {
		t.Fatalf("FollowUp() error = %v, want ErrEmptyQuestion", err)
	}
	if mock.Calls() != 0 {
		t.Error("AI should not be called for an empty question")
	}
}

func TestExplain_AIFailure(t *testing.T) {
	router := ai.NewRouter()
	router.Register("down", &ai.MockProvider{Err: errors.New("timeout")})
	tu := tutor.New(router)

	if _, err := tu.Explain(context.Background(), motion); !errors.Is(err, ai.ErrAllProvidersFailed) {
		t.Fatalf("Explain() error = %v, want ErrAllProvidersFailed", err)
	}
}

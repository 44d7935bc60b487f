package retrieval

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	errs "igloader/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveTarget(t *testing.T) {
	base := filepath.FromSlash("/app/downloads")

	tests := []struct {
		name    string
		sub     string
		want    string
		wantErr bool
	}{
		{name: "no subdirectory", sub: "", want: base},
		{name: "simple", sub: "mine", want: filepath.Join(base, "mine")},
		{name: "nested", sub: "a/b", want: filepath.Join(base, "a", "b")},
		{name: "inner dotdot normalized", sub: "a/../b", want: filepath.Join(base, "b")},
		{name: "dot", sub: ".", want: base},
		{name: "trailing slash", sub: "mine/", want: filepath.Join(base, "mine")},
		{name: "escape", sub: "../etc", wantErr: true},
		{name: "deep escape", sub: "a/../../etc", wantErr: true},
		{name: "bare dotdot", sub: "..", wantErr: true},
		{name: "absolute", sub: "/etc", wantErr: true},
		{name: "nul byte", sub: "a\x00b", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveTarget(base, tt.sub)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrOutsideBase)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveTargetIsDeterministic(t *testing.T) {
	for _, sub := range []string{"", "x", "x/y/../z"} {
		a, errA := ResolveTarget("/base", sub)
		b, errB := ResolveTarget("/base", sub)
		assert.Equal(t, a, b)
		assert.Equal(t, errA, errB)
	}
}

func TestResolveTargetContainment(t *testing.T) {
	base := filepath.FromSlash("/srv/media")
	segments := []string{"..", ".", "a", "b", "..", "c"}

	// every combination of up to four segments either resolves inside base or is rejected
	var walk func(prefix []string, depth int)
	walk = func(prefix []string, depth int) {
		if depth == 0 {
			return
		}
		for _, s := range segments {
			parts := append(append([]string{}, prefix...), s)
			sub := strings.Join(parts, "/")
			got, err := ResolveTarget(base, sub)
			if err == nil {
				rel, relErr := filepath.Rel(base, got)
				require.NoError(t, relErr)
				assert.False(t, rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)), "%q escaped to %q", sub, got)
			}
			walk(parts, depth-1)
		}
	}
	walk(nil, 4)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantKind   Kind
		wantDetail string
	}{
		{"parsing", errs.New(errs.ErrorTypeParsing, 200, "failed to parse JSON"), BadResponse, "failed to parse JSON"},
		{"bad response", errs.New(errs.ErrorTypeBadResponse, 200, "Fetching Post metadata failed"), BadResponse, "Fetching Post metadata failed"},
		{"profile", errs.New(errs.ErrorTypeProfileNotFound, 404, "profile gone"), ProfileNotFound, "profile gone"},
		{"post", errs.New(errs.ErrorTypeNotFound, 404, "resource not found"), PostNotFound, "resource not found"},
		{"network", errs.New(errs.ErrorTypeNetwork, 0, "dial tcp"), ConnectionFailure, "dial tcp"},
		{"rate limit", errs.New(errs.ErrorTypeRateLimit, 429, "rate limit exceeded"), ConnectionFailure, "rate limit exceeded"},
		{"server", errs.New(errs.ErrorTypeServerError, 502, "server error"), ConnectionFailure, "server error"},
		{"wrapped", fmt.Errorf("max retry attempts (3) exceeded: %w", errs.New(errs.ErrorTypeServerError, 503, "server error")), ConnectionFailure, "server error"},
		{"auth", errs.New(errs.ErrorTypeAuth, 401, "authentication required"), Unexpected, "auth error (code 401): authentication required"},
		{"untyped", errors.New("disk full"), Unexpected, "disk full"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, detail := Classify(tt.err)
			assert.Equal(t, tt.wantKind, kind)
			assert.Equal(t, tt.wantDetail, detail)
		})
	}
}

func TestOutcomeConstructors(t *testing.T) {
	assert.Equal(t, Outcome{Kind: Written, Path: "/p"}, WrittenTo("/p"))
	assert.Equal(t, Outcome{Kind: AlreadyPresent, Path: "/p"}, PresentIn("/p"))

	err := errs.New(errs.ErrorTypeNotFound, 404, "resource not found")
	out := Failed(err)
	assert.Equal(t, PostNotFound, out.Kind)
	assert.Equal(t, err, out.Err)
	assert.False(t, out.Kind.Success())
	assert.True(t, Written.Success())
}

func TestKindString(t *testing.T) {
	names := map[Kind]string{
		Written:           "written",
		AlreadyPresent:    "already_present",
		BadResponse:       "bad_response",
		ProfileNotFound:   "profile_not_found",
		PostNotFound:      "post_not_found",
		ConnectionFailure: "connection_failure",
		Unexpected:        "unexpected",
		Kind(99):          "unknown",
	}
	for kind, want := range names {
		assert.Equal(t, want, kind.String())
	}
}

func TestRetrieverFunc(t *testing.T) {
	var r Retriever = RetrieverFunc(func(ctx context.Context, postID, target string) Outcome {
		return WrittenTo(target + "/" + postID)
	})
	assert.Equal(t, "/t/abc", r.Retrieve(context.Background(), "abc", "/t").Path)
}

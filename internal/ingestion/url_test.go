package ingestion

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jonathan/cover-letter-rag/internal/fetch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const postingHTML = `<!DOCTYPE html>
<html>
<head><title>Senior Backend Engineer - Acme</title></head>
<body>
	<nav>Jobs | About | Login</nav>
	<div class="job-description">
		<h1>Senior Backend Engineer</h1>
		<p>Acme is hiring a backend engineer to build the payments platform that processes millions of transactions every day.</p>
		<h2>Requirements</h2>
		<ul>
			<li>5+ years of experience with Go or Java in production systems</li>
			<li>Experience operating PostgreSQL and Kafka at scale</li>
		</ul>
		<div class="eeo-statement">Acme is an equal opportunity employer.</div>
	</div>
	<form><input name="email"></form>
</body>
</html>`

func TestIngestFromURL_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(postingHTML))
	}))
	defer server.Close()

	text, metadata, err := IngestFromURL(context.Background(), server.URL, nil, nil)
	require.NoError(t, err)

	assert.Contains(t, text, "Senior Backend Engineer")
	assert.Contains(t, text, "Experience operating PostgreSQL and Kafka at scale")
	assert.NotContains(t, text, "Login")
	assert.NotContains(t, text, "equal opportunity")

	require.NotNil(t, metadata)
	assert.Equal(t, server.URL, metadata.Location)
	assert.Equal(t, OriginURL, metadata.Origin)
	assert.Equal(t, string(fetch.PlatformUnknown), metadata.Platform)
	assert.Equal(t, "Senior Backend Engineer - Acme", metadata.Title)
	assert.Equal(t, sha(text), metadata.Hash)
}

func TestIngestFromURL_InvalidURL(t *testing.T) {
	for _, raw := range []string{"", "not-a-url", "example.com", "http://"} {
		t.Run(raw, func(t *testing.T) {
			_, _, err := IngestFromURL(context.Background(), raw, nil, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrHTTPRequestFailed)
		})
	}
}

func TestIngestFromURL_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, _, err := IngestFromURL(context.Background(), server.URL, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHTTPRequestFailed)

	var fetchErr *fetch.Error
	assert.ErrorAs(t, err, &fetchErr)
}

func TestIngestFromURL_InsufficientContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html><body><main><p>Apply now.</p></main></body></html>"))
	}))
	defer server.Close()

	_, _, err := IngestFromURL(context.Background(), server.URL, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrContentExtractionFailed)
	assert.ErrorIs(t, err, fetch.ErrInsufficientContent)
}

func TestIngestFromURL_UsesOptions(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.UserAgent()
		_, _ = w.Write([]byte("<html><body><main><p>" + strings.Repeat("Build reliable services. ", 20) + "</p></main></body></html>"))
	}))
	defer server.Close()

	opts := fetch.DefaultOptions()
	opts.UserAgent = "test-agent"

	text, _, err := IngestFromURL(context.Background(), server.URL, opts, nil)
	require.NoError(t, err)
	assert.Equal(t, "test-agent", gotUA)
	assert.True(t, strings.HasPrefix(text, "Build reliable services."))
}

package registry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chis/regman/internal/testutil/registrytest"
)

func newTestClient(t *testing.T, url string) *HTTPClient {
	t.Helper()
	client, err := NewHTTPClient(RegistryConfig{Endpoint: url, Timeout: 5 * time.Second, Concurrency: 3})
	require.NoError(t, err)
	return client
}

// appRegistry returns a fake registry holding repository "app" with tags v1 and v2.
func appRegistry(t *testing.T) *registrytest.FakeRegistry {
	fake := registrytest.NewFakeRegistry(t)
	fake.AddTag("app", "v1")
	fake.AddTag("app", "v2")
	return fake
}

func TestNewHTTPClientRejectsBadEndpoint(t *testing.T) {
	for _, endpoint := range []string{"", "   ", "ftp://registry.local", "https://registry.local/v2/app"} {
		t.Run(endpoint, func(t *testing.T) {
			_, err := NewHTTPClient(RegistryConfig{Endpoint: endpoint})
			assert.Error(t, err)
		})
	}
}

func TestNewHTTPClientDefaults(t *testing.T) {
	client, err := NewHTTPClient(RegistryConfig{Endpoint: "registry.local:5000"})
	require.NoError(t, err)

	assert.Equal(t, Endpoint("https://registry.local:5000"), client.Endpoint())
	assert.Equal(t, DefaultHTTPTimeout, client.httpClient.Timeout)
	assert.Equal(t, DefaultConcurrency, client.concurrency)
}

func TestAppScenario(t *testing.T) {
	fake := appRegistry(t)
	client := newTestClient(t, fake.URL())
	ctx := context.Background()

	repos, err := client.ListRepositories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"app"}, repos)

	tags, err := client.ListTags(ctx, "app")
	require.NoError(t, err)
	assert.Equal(t, []string{"v1", "v2"}, tags)

	ok, err := client.DeleteByTag(ctx, "app", "v1")
	require.NoError(t, err)
	assert.True(t, ok)

	tags, err = client.ListTags(ctx, "app")
	require.NoError(t, err)
	assert.Equal(t, []string{"v2"}, tags)
}

func TestDeleteAllTagsScenario(t *testing.T) {
	fake := appRegistry(t)
	client := newTestClient(t, fake.URL())
	ctx := context.Background()

	report, err := client.DeleteAllTags(ctx, "app")
	require.NoError(t, err)
	require.Len(t, report.Results, 2)
	assert.Equal(t, "app", report.Repository)
	for _, res := range report.Results {
		assert.True(t, res.Deleted, "tag %s: %v", res.Tag, res.Err)
		assert.NotEmpty(t, res.Digest)
	}
	assert.Equal(t, 2, report.Succeeded())
	assert.Empty(t, report.Failed())

	tags, err := client.ListTags(ctx, "app")
	require.NoError(t, err)
	assert.Empty(t, tags)
	assert.NotNil(t, tags)
}

func TestListRepositoriesEmptyCatalog(t *testing.T) {
	fake := registrytest.NewFakeRegistry(t)
	client := newTestClient(t, fake.URL())

	repos, err := client.ListRepositories(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, repos)
	assert.Empty(t, repos)
}

func TestListRepositoriesFailures(t *testing.T) {
	t.Run("non-success status", func(t *testing.T) {
		fake := registrytest.NewFakeRegistry(t)
		fake.FailPath(http.MethodGet, "/v2/_catalog", http.StatusInternalServerError)
		client := newTestClient(t, fake.URL())

		_, err := client.ListRepositories(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrCatalogUnavailable)
		assert.Equal(t, CatalogUnavailable, KindOf(err))
	})

	t.Run("unreachable endpoint", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		url := server.URL
		server.Close()

		client := newTestClient(t, url)
		_, err := client.ListRepositories(context.Background())
		assert.ErrorIs(t, err, ErrCatalogUnavailable)
	})

	t.Run("malformed body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"repositories": [`))
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)
		_, err := client.ListRepositories(context.Background())
		assert.ErrorIs(t, err, ErrCatalogUnavailable)
	})
}

func TestListTags(t *testing.T) {
	fake := appRegistry(t)
	fake.AddRepository("empty")
	fake.FailPath(http.MethodGet, "/v2/broken/tags/list", http.StatusServiceUnavailable)
	client := newTestClient(t, fake.URL())
	ctx := context.Background()

	t.Run("unknown repository", func(t *testing.T) {
		_, err := client.ListTags(ctx, "missing")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrRepositoryNotFound)

		var regErr *Error
		require.True(t, errors.As(err, &regErr))
		assert.Equal(t, http.StatusNotFound, regErr.StatusCode)
		assert.Equal(t, "NAME_UNKNOWN", regErr.Code)
	})

	t.Run("repository without tags", func(t *testing.T) {
		tags, err := client.ListTags(ctx, "empty")
		require.NoError(t, err)
		assert.NotNil(t, tags)
		assert.Empty(t, tags)
	})

	t.Run("server error is transport failure", func(t *testing.T) {
		_, err := client.ListTags(ctx, "broken")
		assert.ErrorIs(t, err, ErrTransportFailure)
	})

	t.Run("invalid name never hits the wire", func(t *testing.T) {
		before := len(fake.Requests(http.MethodGet))
		_, err := client.ListTags(ctx, "Bad Name?")
		assert.ErrorIs(t, err, ErrRepositoryNotFound)
		assert.Len(t, fake.Requests(http.MethodGet), before)
	})
}

func TestListTagsConsistentWithGetManifest(t *testing.T) {
	fake := registrytest.NewFakeRegistry(t)
	for i := 0; i < 5; i++ {
		fake.AddTag("team/service", fmt.Sprintf("1.0.%d", i))
	}
	client := newTestClient(t, fake.URL())
	ctx := context.Background()

	tags, err := client.ListTags(ctx, "team/service")
	require.NoError(t, err)
	require.Len(t, tags, 5)

	for _, tag := range tags {
		manifest, err := client.GetManifest(ctx, "team/service", tag)
		require.NoError(t, err, "tag %s", tag)
		assert.Equal(t, tag, manifest.Reference)
	}
}

func TestGetManifest(t *testing.T) {
	fake := appRegistry(t)
	client := newTestClient(t, fake.URL())
	ctx := context.Background()

	t.Run("returns body and digest", func(t *testing.T) {
		manifest, err := client.GetManifest(ctx, "app", "v1")
		require.NoError(t, err)

		assert.Equal(t, digest.FromBytes(manifest.Body), manifest.Digest)
		assert.Equal(t, MediaTypeDockerManifest, manifest.MediaType)
		assert.Contains(t, string(manifest.Body), `"schemaVersion":2`)
	})

	t.Run("missing tag is TagNotFound", func(t *testing.T) {
		_, err := client.GetManifest(ctx, "app", "nope")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrTagNotFound)
		assert.NotErrorIs(t, err, ErrTransportFailure)
	})

	t.Run("sends manifest accept headers", func(t *testing.T) {
		var accept []string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			accept = r.Header.Values("Accept")
			w.Write([]byte(`{}`))
		}))
		defer server.Close()

		_, err := newTestClient(t, server.URL).GetManifest(ctx, "app", "v1")
		require.NoError(t, err)
		assert.ElementsMatch(t, manifestAccept, accept)
	})
}

func TestDeleteByTagIdempotent(t *testing.T) {
	fake := appRegistry(t)
	client := newTestClient(t, fake.URL())
	ctx := context.Background()

	ok, err := client.DeleteByTag(ctx, "app", "v1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.DeleteByTag(ctx, "app", "v1")
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrTagNotFound)
}

func TestDeleteByTagDigestMissing(t *testing.T) {
	fake := appRegistry(t)
	fake.AddTag("app", "v3")
	fake.OmitDigest("app", "v3")
	client := newTestClient(t, fake.URL())

	ok, err := client.DeleteByTag(context.Background(), "app", "v3")
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrDigestMissing)
	assert.Empty(t, fake.Requests(http.MethodDelete), "no DELETE may be issued without a digest")
	assert.Equal(t, []string{"v1", "v2", "v3"}, fake.Tags("app"))
}

func TestDeleteByTagDeletesResolvedDigest(t *testing.T) {
	fake := appRegistry(t)
	client := newTestClient(t, fake.URL())
	ctx := context.Background()

	dgst, err := client.ResolveDigest(ctx, "app", "v2")
	require.NoError(t, err)

	_, err = client.DeleteByTag(ctx, "app", "v2")
	require.NoError(t, err)

	deletes := fake.Requests(http.MethodDelete)
	require.Len(t, deletes, 1)
	assert.Equal(t, "/v2/app/manifests/"+dgst.String(), deletes[0])
}

func TestDeleteTagReportsResolvedDigest(t *testing.T) {
	fake := appRegistry(t)
	fake.AddTag("app", "v3")
	fake.OmitDigest("app", "v3")
	client := newTestClient(t, fake.URL())
	ctx := context.Background()

	want, err := client.ResolveDigest(ctx, "app", "v1")
	require.NoError(t, err)

	result := client.DeleteTag(ctx, "app", "v1")
	require.NoError(t, result.Err)
	assert.True(t, result.Deleted)
	assert.Equal(t, "v1", result.Tag)
	assert.Equal(t, want, result.Digest)

	missing := client.DeleteTag(ctx, "app", "v3")
	assert.False(t, missing.Deleted)
	assert.Empty(t, missing.Digest)
	assert.Equal(t, DigestMissing, missing.Kind)
}

func TestDeleteByTagRejected(t *testing.T) {
	fake := appRegistry(t)
	fake.RejectDelete("app", "v1", http.StatusMethodNotAllowed)
	client := newTestClient(t, fake.URL())

	ok, err := client.DeleteByTag(context.Background(), "app", "v1")
	assert.False(t, ok)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDeleteRejected)

	var regErr *Error
	require.True(t, errors.As(err, &regErr))
	assert.Equal(t, http.StatusMethodNotAllowed, regErr.StatusCode)
	assert.Equal(t, "DENIED", regErr.Code)
}

func TestDeleteByDigest(t *testing.T) {
	fake := appRegistry(t)
	client := newTestClient(t, fake.URL())
	ctx := context.Background()

	dgst, err := client.ResolveDigest(ctx, "app", "v1")
	require.NoError(t, err)

	t.Run("accepted", func(t *testing.T) {
		ok, err := client.DeleteByDigest(ctx, "app", dgst)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []string{"v2"}, fake.Tags("app"))
	})

	t.Run("unknown digest is rejected", func(t *testing.T) {
		ok, err := client.DeleteByDigest(ctx, "app", dgst)
		assert.False(t, ok)
		assert.ErrorIs(t, err, ErrDeleteRejected)
	})

	t.Run("malformed digest is rejected locally", func(t *testing.T) {
		before := len(fake.Requests(http.MethodDelete))
		ok, err := client.DeleteByDigest(ctx, "app", digest.Digest("sha256:xyz"))
		assert.False(t, ok)
		assert.ErrorIs(t, err, ErrDeleteRejected)
		assert.Len(t, fake.Requests(http.MethodDelete), before)
	})
}

func TestDeleteSharedDigestRemovesAliases(t *testing.T) {
	fake := appRegistry(t)
	fake.AliasTag("app", "latest", "v2")
	client := newTestClient(t, fake.URL())

	ok, err := client.DeleteByTag(context.Background(), "app", "latest")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"v1"}, fake.Tags("app"))
}

func TestDeleteAllTagsIsolatesFailures(t *testing.T) {
	fake := registrytest.NewFakeRegistry(t)
	for i := 1; i <= 6; i++ {
		fake.AddTag("app", fmt.Sprintf("v%d", i))
	}
	fake.RejectDelete("app", "v3", http.StatusForbidden)
	fake.OmitDigest("app", "v5")
	client := newTestClient(t, fake.URL())

	report, err := client.DeleteAllTags(context.Background(), "app")
	require.NoError(t, err)
	require.Len(t, report.Results, 6)

	for i, res := range report.Results {
		assert.Equal(t, fmt.Sprintf("v%d", i+1), res.Tag, "results keep listing order")
		switch res.Tag {
		case "v3":
			assert.False(t, res.Deleted)
			assert.Equal(t, DeleteRejected, res.Kind)
			assert.NotEmpty(t, res.Digest)
			assert.ErrorIs(t, res.Err, ErrDeleteRejected)
		case "v5":
			assert.False(t, res.Deleted)
			assert.Equal(t, DigestMissing, res.Kind)
			assert.Empty(t, res.Digest)
		default:
			assert.True(t, res.Deleted, "tag %s: %v", res.Tag, res.Err)
			assert.Zero(t, res.Kind)
			assert.Nil(t, res.Err)
		}
	}

	assert.Equal(t, 4, report.Succeeded())
	assert.Len(t, report.Failed(), 2)
	assert.Equal(t, []string{"v3", "v5"}, fake.Tags("app"))
}

func TestDeleteAllTagsReportLengthMatchesListing(t *testing.T) {
	// Every delete fails; the report must still cover every listed tag.
	fake := registrytest.NewFakeRegistry(t)
	for i := 0; i < 20; i++ {
		tag := fmt.Sprintf("t%02d", i)
		fake.AddTag("app", tag)
		fake.RejectDelete("app", tag, http.StatusMethodNotAllowed)
	}
	client := newTestClient(t, fake.URL())

	report, err := client.DeleteAllTags(context.Background(), "app")
	require.NoError(t, err)
	assert.Len(t, report.Results, 20)
	assert.Zero(t, report.Succeeded())
}

func TestDeleteAllTagsListingFailure(t *testing.T) {
	fake := registrytest.NewFakeRegistry(t)
	client := newTestClient(t, fake.URL())

	report, err := client.DeleteAllTags(context.Background(), "ghost")
	assert.Nil(t, report)
	assert.ErrorIs(t, err, ErrRepositoryNotFound)
}

func TestDeleteAllTagsRespectsConcurrencyLimit(t *testing.T) {
	var inFlight, peak int32
	tags := []string{"a", "b", "c", "d", "e", "f", "g", "h"}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			if r.URL.Path == "/v2/app/tags/list" {
				fmt.Fprintf(w, `{"name":"app","tags":["a","b","c","d","e","f","g","h"]}`)
				return
			}
			w.Header().Set("Docker-Content-Digest", digest.FromString(r.URL.Path).String())
			w.Write([]byte(`{}`))
		case http.MethodDelete:
			n := atomic.AddInt32(&inFlight, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
			w.WriteHeader(http.StatusAccepted)
		}
	}))
	defer server.Close()

	client := newTestClient(t, server.URL) // concurrency 3
	report, err := client.DeleteAllTags(context.Background(), "app")
	require.NoError(t, err)
	assert.Equal(t, len(tags), report.Succeeded())
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
}

func TestTimeoutIsTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.Write([]byte(`{"tags":[]}`))
	}))
	defer server.Close()

	client, err := NewHTTPClient(RegistryConfig{Endpoint: server.URL, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)

	_, err = client.ListTags(context.Background(), "app")
	assert.ErrorIs(t, err, ErrTransportFailure)

	_, err = client.ListRepositories(context.Background())
	assert.ErrorIs(t, err, ErrCatalogUnavailable)
}

func TestWithHTTPClientKeepsTimeout(t *testing.T) {
	custom := &http.Client{}
	client, err := NewHTTPClient(RegistryConfig{Endpoint: "localhost:5000", Timeout: 7 * time.Second},
		WithHTTPClient(custom))
	require.NoError(t, err)

	assert.Equal(t, 7*time.Second, client.httpClient.Timeout)
	assert.Zero(t, custom.Timeout, "caller's client must not be modified")
}

func TestDeleteByTagMalformedDigestHeader(t *testing.T) {
	var deletes int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			atomic.AddInt32(&deletes, 1)
			w.WriteHeader(http.StatusAccepted)
			return
		}
		w.Header().Set("Docker-Content-Digest", "sha256:not-a-digest")
		w.Write([]byte(`{"schemaVersion":2}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	deleted, err := client.DeleteByTag(context.Background(), "app", "v1")
	assert.False(t, deleted)
	assert.ErrorIs(t, err, ErrDigestMissing)
	assert.Zero(t, atomic.LoadInt32(&deletes), "no DELETE without a usable digest")
}

func TestGetManifestRejectsDigestReference(t *testing.T) {
	fake := appRegistry(t)
	client := newTestClient(t, fake.URL())
	ctx := context.Background()

	dgst, err := client.ResolveDigest(ctx, "app", "v1")
	require.NoError(t, err)
	before := len(fake.Requests(http.MethodGet))

	_, err = client.GetManifest(ctx, "app", dgst.String())
	assert.ErrorIs(t, err, ErrTagNotFound)
	assert.Len(t, fake.Requests(http.MethodGet), before, "digest references never reach the wire")
}

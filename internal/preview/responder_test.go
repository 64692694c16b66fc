package preview

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/pet-preview/internal/hash/sha256"
	"github.com/JakeFAU/pet-preview/internal/pet"
	"github.com/JakeFAU/pet-preview/internal/storage/memory"
	"github.com/JakeFAU/pet-preview/internal/useragent"
)

const (
	whatsApp = "WhatsApp/2.23.20.0 A"
	chrome   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
	rawImage = "https://cdn.example.com/bella.jpg"
	nullPet  = "00aa11bb"
)

func newTestResponder(t *testing.T, opts Options) *Responder {
	t.Helper()
	if opts.Store == nil {
		opts.Store = memory.NewPetStore(
			pet.Pet{ID: bellaID, Name: "Bella", ImageURL: strPtr(rawImage)},
			pet.Pet{ID: nullPet, Name: "Ghost"},
		)
	}
	if opts.Settings.SiteURL == "" {
		opts.Settings.SiteURL = "https://pawstrophe.example"
	}
	rs, err := New(opts)
	require.NoError(t, err)
	return rs
}

// spa stands in for the application's normal routing.
var spa = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("X-Handled-By", "spa")
	_, _ = w.Write([]byte("<div id=root></div>"))
})

func do(h http.Handler, method, path, ua string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if ua != "" {
		req.Header.Set("User-Agent", ua)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func requireFallback(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/favicon.png", rec.Header().Get("Location"))
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	require.Empty(t, rec.Header().Get("X-Handled-By"))
}

func TestMiddlewarePassesThroughOtherPaths(t *testing.T) {
	t.Parallel()

	h := newTestResponder(t, Options{}).Middleware(spa)
	for _, path := range []string{"/", "/about", "/pet", "/pet/", "/pet/Bella", "/pet/" + bellaID + "/edit", "/pets/" + bellaID, "/favicon.png"} {
		for _, ua := range []string{whatsApp, chrome, ""} {
			rec := do(h, http.MethodGet, path, ua)
			require.Equal(t, http.StatusOK, rec.Code, path)
			require.Equal(t, "spa", rec.Header().Get("X-Handled-By"), path)
			require.Equal(t, "<div id=root></div>", rec.Body.String(), path)
		}
	}
}

func TestMiddlewarePassesThroughBrowsers(t *testing.T) {
	t.Parallel()

	h := newTestResponder(t, Options{}).Middleware(spa)
	for _, id := range []string{bellaID, nullPet, "deadbeef"} {
		rec := do(h, http.MethodGet, "/pet/"+id, chrome)
		require.Equal(t, "spa", rec.Header().Get("X-Handled-By"), id)
	}
}

func TestMiddlewarePassesThroughNonReadMethods(t *testing.T) {
	t.Parallel()

	h := newTestResponder(t, Options{}).Middleware(spa)
	rec := do(h, http.MethodPost, "/pet/"+bellaID, whatsApp)
	require.Equal(t, "spa", rec.Header().Get("X-Handled-By"))
}

func TestMiddlewareNotFoundFallsBack(t *testing.T) {
	t.Parallel()

	h := newTestResponder(t, Options{}).Middleware(spa)
	requireFallback(t, do(h, http.MethodGet, "/pet/deadbeef", whatsApp))
}

func TestMiddlewareMissingImageFallsBack(t *testing.T) {
	t.Parallel()

	h := newTestResponder(t, Options{}).Middleware(spa)
	requireFallback(t, do(h, http.MethodGet, "/pet/"+nullPet, whatsApp))
}

func TestMiddlewareServesDocumentToCrawler(t *testing.T) {
	t.Parallel()

	h := newTestResponder(t, Options{ETags: sha256.New()}).Middleware(spa)
	rec := do(h, http.MethodGet, "/pet/"+bellaID, whatsApp)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	tags := metaContent(t, rec.Body.Bytes())
	require.Contains(t, tags["og:title"], "Bella")
	require.Contains(t, tags["og:description"], "Bella")
	require.Equal(t, "Bella is looking for a forever home!", tags["description"])
	require.NotEqual(t, rawImage, tags["og:image"])
	require.Equal(t, "https://pawstrophe.example/api/og-image/"+bellaID, tags["og:image"])
	require.Equal(t, tags["og:image"], tags["twitter:image"])
	require.Equal(t, "https://pawstrophe.example/pet/"+bellaID, tags["og:url"])
}

func TestMiddlewareDerivesAbsoluteURLsWithoutSiteURL(t *testing.T) {
	t.Parallel()

	rs, err := New(Options{Store: memory.NewPetStore(pet.Pet{ID: bellaID, Name: "Bella", ImageURL: strPtr(rawImage)})})
	require.NoError(t, err)
	h := rs.Middleware(spa)

	req := httptest.NewRequest(http.MethodGet, "/pet/"+bellaID, nil)
	req.Host = "pawstrophe.example"
	req.Header.Set("User-Agent", whatsApp)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	tags := metaContent(t, rec.Body.Bytes())
	require.Equal(t, "http://pawstrophe.example/api/og-image/"+bellaID, tags["og:image"])
	require.Equal(t, "http://pawstrophe.example/pet/"+bellaID, tags["og:url"])

	req.Header.Set("X-Forwarded-Proto", "https, http")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	tags = metaContent(t, rec.Body.Bytes())
	require.Equal(t, "https://pawstrophe.example/api/og-image/"+bellaID, tags["og:image"])
	require.Equal(t, "https://pawstrophe.example/pet/"+bellaID, tags["og:url"])
}

func TestMiddlewareDirectModeEmbedsRawImage(t *testing.T) {
	t.Parallel()

	h := newTestResponder(t, Options{Settings: Settings{ImageMode: ImageModeDirect}}).Middleware(spa)
	rec := do(h, http.MethodGet, "/pet/"+bellaID, "facebookexternalhit/1.1")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, rawImage, metaContent(t, rec.Body.Bytes())["og:image"])
}

func TestMiddlewareIsIdempotent(t *testing.T) {
	t.Parallel()

	h := newTestResponder(t, Options{ETags: sha256.New()}).Middleware(spa)
	first := do(h, http.MethodGet, "/pet/"+bellaID, whatsApp)
	second := do(h, http.MethodGet, "/pet/"+bellaID, whatsApp)
	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, first.Body.Bytes(), second.Body.Bytes())
	require.Equal(t, first.Header().Get("ETag"), second.Header().Get("ETag"))
}

func TestMiddlewareEscapesStoredValues(t *testing.T) {
	t.Parallel()

	name := `Bella "<b>" & co`
	desc := `</title><script>alert("x")</script>`
	store := memory.NewPetStore(pet.Pet{ID: "abcd", Name: name, Description: &desc, ImageURL: strPtr(rawImage)})
	h := newTestResponder(t, Options{Store: store}).Middleware(spa)

	rec := do(h, http.MethodGet, "/pet/abcd", whatsApp)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, countElements(t, rec.Body.Bytes(), "script"))
	tags := metaContent(t, rec.Body.Bytes())
	require.Equal(t, "Meet "+name+"! 🐾", tags["og:title"])
	require.Equal(t, desc, tags["og:description"])
}

func TestMiddlewareTimeoutFallsBack(t *testing.T) {
	t.Parallel()

	h := newTestResponder(t, Options{Store: newBlockingStore(t), LookupTimeout: 50 * time.Millisecond}).Middleware(spa)
	start := time.Now()
	rec := do(h, http.MethodGet, "/pet/"+bellaID, whatsApp)
	require.Less(t, time.Since(start), 2*time.Second)
	requireFallback(t, rec)
}

func TestMiddlewareUpstreamErrorFallsBack(t *testing.T) {
	t.Parallel()

	store := storeFunc(func(context.Context, string) (pet.Pet, error) {
		return pet.Pet{}, errors.New("secret-db-host:5432 refused")
	})
	h := newTestResponder(t, Options{Store: store}).Middleware(spa)
	rec := do(h, http.MethodGet, "/pet/"+bellaID, whatsApp)
	requireFallback(t, rec)
	require.NotContains(t, rec.Body.String(), "secret-db-host")
}

func TestMiddlewareDegradedWithoutStore(t *testing.T) {
	t.Parallel()

	rs, err := New(Options{})
	require.NoError(t, err)
	require.False(t, rs.Enabled())

	rec := do(rs.Middleware(spa), http.MethodGet, "/pet/"+bellaID, whatsApp)
	require.Equal(t, "spa", rec.Header().Get("X-Handled-By"))
}

func TestMiddlewareUsesConfiguredDetector(t *testing.T) {
	t.Parallel()

	h := newTestResponder(t, Options{Detector: useragent.New([]string{"PawBot"})}).Middleware(spa)
	require.Equal(t, "spa", do(h, http.MethodGet, "/pet/"+bellaID, whatsApp).Header().Get("X-Handled-By"))
	require.Equal(t, http.StatusOK, do(h, http.MethodGet, "/pet/"+bellaID, "PawBot/1.0").Code)
}

func TestMiddlewareRedirectStrategy(t *testing.T) {
	t.Parallel()

	h := newTestResponder(t, Options{Strategy: StrategyRedirect}).Middleware(spa)
	rec := do(h, http.MethodGet, "/pet/"+bellaID, whatsApp)
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, rawImage, rec.Header().Get("Location"))
}

func TestMiddlewareProxyStrategyFallsBackOnFetchError(t *testing.T) {
	t.Parallel()

	h := newTestResponder(t, Options{Strategy: StrategyProxy, Images: &fakeSource{err: errors.New("503")}}).Middleware(spa)
	requireFallback(t, do(h, http.MethodGet, "/pet/"+bellaID, whatsApp))
}

func TestNewRejectsBadConfiguration(t *testing.T) {
	t.Parallel()

	_, err := New(Options{Strategy: "inject"})
	require.Error(t, err)

	_, err = New(Options{Settings: Settings{ImageMode: ImageModeTransform}})
	require.Error(t, err)
}

func TestImageHandler(t *testing.T) {
	t.Parallel()

	src := &fakeSource{data: []byte("jpeg-bytes"), contentType: "image/jpeg"}
	rs := newTestResponder(t, Options{Images: src})
	r := chi.NewRouter()
	r.Get("/api/og-image/{id}", rs.ImageHandler())

	rec := do(r, http.MethodGet, "/api/og-image/"+bellaID, chrome)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	require.Equal(t, "jpeg-bytes", rec.Body.String())

	requireFallback(t, do(r, http.MethodGet, "/api/og-image/"+nullPet, whatsApp))
	requireFallback(t, do(r, http.MethodGet, "/api/og-image/not-a-hex-id!", whatsApp))
}

type denyAfter struct {
	left int
	keys []string
}

func (d *denyAfter) Allow(key string) bool {
	d.keys = append(d.keys, key)
	d.left--
	return d.left >= 0
}

func TestMiddlewareRateLimitFallsBack(t *testing.T) {
	t.Parallel()

	limiter := &denyAfter{left: 1}
	h := newTestResponder(t, Options{Limiter: limiter}).Middleware(spa)
	require.Equal(t, http.StatusOK, do(h, http.MethodGet, "/pet/"+bellaID, whatsApp).Code)
	requireFallback(t, do(h, http.MethodGet, "/pet/"+bellaID, whatsApp))
	require.Equal(t, []string{"WhatsApp", "WhatsApp"}, limiter.keys)

	// Browsers never touch the limiter.
	require.Equal(t, "spa", do(h, http.MethodGet, "/pet/"+bellaID, chrome).Header().Get("X-Handled-By"))
	require.Len(t, limiter.keys, 2)
}

package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/pet-preview/internal/config"
	"github.com/JakeFAU/pet-preview/internal/pet"
)

type fakeService struct {
	doc    []byte
	err    error
	ids    []string
	closed bool
}

func (f *fakeService) Run(context.Context) error { return nil }

func (f *fakeService) RenderPreview(_ context.Context, id string) ([]byte, error) {
	f.ids = append(f.ids, id)
	return f.doc, f.err
}

func (f *fakeService) Close() { f.closed = true }

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func withService(t *testing.T, svc Service) {
	t.Helper()
	prev := newService
	newService = func(context.Context, *config.Config) (Service, error) { return svc, nil }
	t.Cleanup(func() { newService = prev })
}

func TestClassifyDefaults(t *testing.T) {
	out, err := run(t, "classify", "WhatsApp/2.23.20.0 A")
	require.NoError(t, err)
	require.Equal(t, "crawler (matched \"WhatsApp\")\n", out)

	out, err = run(t, "classify", "Mozilla/5.0 Chrome/120.0")
	require.NoError(t, err)
	require.Equal(t, "not a crawler\n", out)
}

func TestClassifyUsesConfigFile(t *testing.T) {
	dir := t.TempDir()
	list := filepath.Join(dir, "crawlers.yaml")
	require.NoError(t, os.WriteFile(list, []byte("patterns: [PawBot]\n"), 0o600))
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("crawlers:\n  file: "+list+"\n"), 0o600))

	out, err := run(t, "--config", cfgPath, "classify", "PawBot/1.0")
	require.NoError(t, err)
	require.Contains(t, out, "PawBot")

	out, err = run(t, "--config", cfgPath, "classify", "WhatsApp/2.23")
	require.NoError(t, err)
	require.Equal(t, "not a crawler\n", out)
}

func TestRenderPrintsDocument(t *testing.T) {
	svc := &fakeService{doc: []byte("<!DOCTYPE html>bella")}
	withService(t, svc)

	out, err := run(t, "render", "abc123")
	require.NoError(t, err)
	require.Equal(t, "<!DOCTYPE html>bella", out)
	require.Equal(t, []string{"abc123"}, svc.ids)
	require.True(t, svc.closed)
}

func TestRenderReportsOutcome(t *testing.T) {
	withService(t, &fakeService{err: pet.ErrNotFound})

	_, err := run(t, "render", "abc123")
	require.ErrorIs(t, err, pet.ErrNotFound)
	require.ErrorContains(t, err, "not_found")
}

func TestRenderRejectsBadID(t *testing.T) {
	svc := &fakeService{}
	withService(t, svc)

	_, err := run(t, "render", "../etc/passwd")
	require.Error(t, err)
	require.Empty(t, svc.ids)
}

func TestServeReportsBuildFailure(t *testing.T) {
	prev := newService
	newService = func(context.Context, *config.Config) (Service, error) { return nil, errors.New("boom") }
	t.Cleanup(func() { newService = prev })

	_, err := run(t, "serve")
	require.ErrorContains(t, err, "boom")
}

func TestBadConfigFails(t *testing.T) {
	_, err := run(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "classify", "x")
	require.ErrorContains(t, err, "load config")
}

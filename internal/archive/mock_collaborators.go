package archive

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockManifestResolver is a mock implementation of ManifestResolver for testing.
type MockManifestResolver struct {
	mock.Mock
}

// Resolve is the mock implementation of the Resolve method.
func (m *MockManifestResolver) Resolve(id string) ManifestReference {
	args := m.Called(id)
	return args.Get(0).(ManifestReference) //nolint:forcetypeassert
}

// Fetch is the mock implementation of the Fetch method.
func (m *MockManifestResolver) Fetch(ctx context.Context, ref ManifestReference) (Manifest, error) {
	args := m.Called(ctx, ref)
	return args.Get(0).(Manifest), args.Error(1) //nolint:forcetypeassert,wrapcheck
}

// MockImageExtractor is a mock implementation of ImageExtractor for testing.
type MockImageExtractor struct {
	mock.Mock
}

// FromManifest is the mock implementation of the FromManifest method.
func (m *MockImageExtractor) FromManifest(manifest Manifest) []ImageLocator {
	args := m.Called(manifest)
	locs, _ := args.Get(0).([]ImageLocator)
	return locs
}

// FromMarkup is the mock implementation of the FromMarkup method.
func (m *MockImageExtractor) FromMarkup(markup string) []ImageLocator {
	args := m.Called(markup)
	locs, _ := args.Get(0).([]ImageLocator)
	return locs
}

// MockImageFetcher is a mock implementation of ImageFetcher for testing.
type MockImageFetcher struct {
	mock.Mock
}

// FetchToPath is the mock implementation of the FetchToPath method.
func (m *MockImageFetcher) FetchToPath(ctx context.Context, loc ImageLocator, targetDir string) FetchOutcome {
	args := m.Called(ctx, loc, targetDir)
	return args.Get(0).(FetchOutcome) //nolint:forcetypeassert
}

// MockNavigator is a mock implementation of Navigator for testing.
type MockNavigator struct {
	mock.Mock
}

// Navigate is the mock implementation of the Navigate method.
func (m *MockNavigator) Navigate(ctx context.Context, rawURL string) (Page, error) {
	args := m.Called(ctx, rawURL)
	return args.Get(0).(Page), args.Error(1) //nolint:forcetypeassert,wrapcheck
}

// OpenResult is the mock implementation of the OpenResult method.
func (m *MockNavigator) OpenResult(ctx context.Context, index int) (Page, error) {
	args := m.Called(ctx, index)
	return args.Get(0).(Page), args.Error(1) //nolint:forcetypeassert,wrapcheck
}

// Back is the mock implementation of the Back method.
func (m *MockNavigator) Back(ctx context.Context) (Page, error) {
	args := m.Called(ctx)
	return args.Get(0).(Page), args.Error(1) //nolint:forcetypeassert,wrapcheck
}

// Results is the mock implementation of the Results method.
func (m *MockNavigator) Results(ctx context.Context) ([]SearchResult, error) {
	args := m.Called(ctx)
	results, _ := args.Get(0).([]SearchResult)
	return results, args.Error(1) //nolint:wrapcheck
}

// InSearch is the mock implementation of the InSearch method.
func (m *MockNavigator) InSearch(rawURL string) bool {
	args := m.Called(rawURL)
	return args.Bool(0)
}

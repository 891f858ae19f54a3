// Package fetch downloads prebuilt artifacts into the local cache, either from
// a GitHub release or from an HTML index page of an artifact repository.
package fetch

import (
	"bytes"
	"context"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/go-github/v27/github"
	"github.com/google/renameio"
	"github.com/tenstage/tenstage"
	"golang.org/x/mod/semver"
	"golang.org/x/net/html"
	"golang.org/x/oauth2"
	"golang.org/x/xerrors"
)

// Ctx is a fetch context, containing configuration.
type Ctx struct {
	Log   *log.Logger
	Cache string

	// HTTPClient is used for all downloads. If nil, http.DefaultClient.
	HTTPClient *http.Client

	// GitHubToken authenticates GitHub API requests, raising the rate limit.
	// Anonymous requests work, too.
	GitHubToken string
}

func (c *Ctx) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Ctx) githubClient(ctx context.Context) *github.Client {
	if c.GitHubToken == "" {
		return github.NewClient(c.httpClient())
	}
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: c.GitHubToken},
	)
	return github.NewClient(oauth2.NewClient(ctx, ts))
}

// download fetches url into the cache, atomically. The destination file only
// appears once fully downloaded.
func (c *Ctx) download(ctx context.Context, uri, dest string) error {
	req, err := http.NewRequestWithContext(ctx, "GET", uri, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if got, want := resp.StatusCode, http.StatusOK; got != want {
		return xerrors.Errorf("%s: HTTP status %v", uri, resp.Status)
	}
	f, err := renameio.TempFile("", dest)
	if err != nil {
		return err
	}
	defer f.Cleanup()
	if _, err := io.Copy(f, resp.Body); err != nil {
		return err
	}
	return f.CloseAtomicallyReplace()
}

// GitHubRelease downloads all assets of the named release whose filename
// matches pkg and variant into the cache, returning the cached paths. An empty
// tag selects the newest release by semver tag.
func (c *Ctx) GitHubRelease(ctx context.Context, owner, repo, tag, pkg, variant string) ([]string, error) {
	client := c.githubClient(ctx)
	var release *github.RepositoryRelease
	if tag != "" {
		var err error
		release, _, err = client.Repositories.GetReleaseByTag(ctx, owner, repo, tag)
		if err != nil {
			return nil, err
		}
	} else {
		releases, _, err := client.Repositories.ListReleases(ctx, owner, repo, &github.ListOptions{PerPage: 100})
		if err != nil {
			return nil, err
		}
		for _, r := range releases {
			if r.GetPrerelease() || r.GetDraft() {
				continue
			}
			if release == nil || semver.Compare(maybeV(r.GetTagName()), maybeV(release.GetTagName())) > 0 {
				release = r
			}
		}
		if release == nil {
			return nil, xerrors.Errorf("github.com/%s/%s: no releases", owner, repo)
		}
	}
	c.Log.Printf("release %s", release.GetTagName())

	if err := os.MkdirAll(c.Cache, 0755); err != nil {
		return nil, err
	}
	var fetched []string
	for _, asset := range release.Assets {
		name := asset.GetName()
		if !matches(name, pkg, variant) {
			continue
		}
		dest := filepath.Join(c.Cache, name)
		if _, err := os.Stat(dest); err == nil {
			c.Log.Printf("  %s (cached)", name)
			fetched = append(fetched, dest)
			continue
		}
		c.Log.Printf("  %s (%d bytes)", name, asset.GetSize())
		if err := c.download(ctx, asset.GetBrowserDownloadURL(), dest); err != nil {
			return nil, err
		}
		fetched = append(fetched, dest)
	}
	if len(fetched) == 0 {
		return nil, xerrors.Errorf("release %s: no asset matches pkg %q, variant %q", release.GetTagName(), pkg, variant)
	}
	return fetched, nil
}

func matches(filename, pkg, variant string) bool {
	av := tenstage.ParseVersion(filename)
	if av.Variant != variant {
		return false
	}
	return pkg == "" || av.Pkg == pkg
}

func extractLinks(parent *url.URL, b []byte) ([]string, error) {
	doc, err := html.Parse(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	var links []string
	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			var href string
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				href = attr.Val
				break
			}
			if href != "" {
				if uri, err := url.Parse(href); err == nil {
					links = append(links, parent.ResolveReference(uri).String())
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(doc)
	return links, nil
}

func maybeV(v string) string {
	if strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}

// Index downloads all artifacts for pkg and variant which an HTML index page
// links to, preferring the highest revision of the newest upstream version.
func (c *Ctx) Index(ctx context.Context, indexURL, pkg, variant string) ([]string, error) {
	u, err := url.Parse(indexURL)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, "GET", indexURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if got, want := resp.StatusCode, http.StatusOK; got != want {
		return nil, xerrors.Errorf("%s: HTTP status %v", indexURL, resp.Status)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	links, err := extractLinks(u, b)
	if err != nil {
		return nil, err
	}
	matching := make([]string, 0, len(links))
	for _, link := range links {
		if matches(path.Base(link), pkg, variant) {
			matching = append(matching, link)
		}
	}
	if len(matching) == 0 {
		return nil, xerrors.Errorf("%s: no link matches pkg %q, variant %q", indexURL, pkg, variant)
	}
	sort.SliceStable(matching, func(i, j int) bool {
		a := tenstage.ParseVersion(path.Base(matching[i]))
		b := tenstage.ParseVersion(path.Base(matching[j]))
		if cmp := semver.Compare(maybeV(a.Upstream), maybeV(b.Upstream)); cmp != 0 {
			return cmp > 0 // newest upstream version first
		}
		return a.Revision > b.Revision
	})
	newest := tenstage.ParseVersion(path.Base(matching[0]))

	if err := os.MkdirAll(c.Cache, 0755); err != nil {
		return nil, err
	}
	var fetched []string
	for _, link := range matching {
		av := tenstage.ParseVersion(path.Base(link))
		if av.Upstream != newest.Upstream || av.Revision != newest.Revision {
			continue
		}
		dest := filepath.Join(c.Cache, path.Base(link))
		if _, err := os.Stat(dest); err == nil {
			c.Log.Printf("  %s (cached)", path.Base(link))
			fetched = append(fetched, dest)
			continue
		}
		c.Log.Printf("  %s", path.Base(link))
		if err := c.download(ctx, link, dest); err != nil {
			return nil, err
		}
		fetched = append(fetched, dest)
	}
	return fetched, nil
}

// Package github implements the gitrepo.Lister port over the GitHub contents
// API. Requests go through a fetch.Fetcher so they share its retry and
// rate-limit handling.
package github

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/tilsley/treemirror/apps/mirror/internal/fetch"
	"github.com/tilsley/treemirror/apps/mirror/internal/gitrepo"
)

// JSONFetcher is satisfied by *fetch.Fetcher.
type JSONFetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.Result, error)
}

// Lister lists contents API directories, following pagination.
type Lister struct {
	f JSONFetcher
}

// NewLister creates a Lister backed by f.
func NewLister(f JSONFetcher) *Lister {
	return &Lister{f: f}
}

// ListDir returns every entry of the directory at dirURL. Pages are requested
// by setting the page query parameter and are concatenated in order.
func (l *Lister) ListDir(ctx context.Context, dirURL string) ([]gitrepo.DirEntry, error) {
	var all []gitrepo.DirEntry
	seen := map[int]bool{}
	pageURL := dirURL
	for {
		res, err := l.f.Fetch(ctx, pageURL)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", dirURL, err)
		}
		entries, err := gitrepo.DecodeListing(res.Body)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", pageURL, err)
		}
		all = append(all, entries...)

		if res.NextPage == 0 {
			return all, nil
		}
		if seen[res.NextPage] {
			return nil, fmt.Errorf("list %s: page %d requested twice", dirURL, res.NextPage)
		}
		seen[res.NextPage] = true

		pageURL, err = withPage(dirURL, res.NextPage)
		if err != nil {
			return nil, err
		}
	}
}

func withPage(rawURL string, page int) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", rawURL, err)
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ContentsURL returns the contents API URL for path in owner/repo, pinned to
// ref when ref is non-empty.
func ContentsURL(apiBase, owner, repo, path, ref string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	u := fmt.Sprintf("%s/repos/%s/%s/contents/%s",
		strings.TrimRight(apiBase, "/"), url.PathEscape(owner), url.PathEscape(repo), strings.Join(segments, "/"))
	if ref != "" {
		u += "?ref=" + url.QueryEscape(ref)
	}
	return u
}

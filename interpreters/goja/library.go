package goja

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Comcast/xcall/storage"
	"github.com/Comcast/xcall/util"
)

// LibraryProvider resolves a library name into source code.
//
// A problem: For a multitenant service, we need some access
// control. If a single LibraryProvider will provide all the
// libraries for all tenants, we need a mechanism to provide access
// control.  With trepidation, perhaps just use a Value in the ctx?
type LibraryProvider func(ctx context.Context, r *Runtime, name string) (string, error)

// DefaultLibraryProvider is used by a Runtime without a
// LibraryProvider.
var DefaultLibraryProvider = MakeFileLibraryProvider(".")

// LibraryFetchTimeout bounds an HTTP library fetch.
var LibraryFetchTimeout = 10 * time.Second

func scheme(name string) (string, string, error) {
	parts := strings.SplitN(name, "://", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("bad link '%s'", name)
	}
	return parts[0], parts[1], nil
}

// MakeFileLibraryProvider makes a LibraryProvider that supports names
// that are URLs with protocols of "file", "http", and "https".
//
// A "file" name is relative to dir and can't escape it.  HTTP
// fetches use a client with a cookie jar.
func MakeFileLibraryProvider(dir string) LibraryProvider {
	return func(ctx context.Context, r *Runtime, name string) (string, error) {
		proto, rest, err := scheme(name)
		if err != nil {
			return "", err
		}
		switch proto {
		case "file":
			filename := filepath.Clean(rest)
			if filepath.IsAbs(filename) || filename == ".." ||
				strings.HasPrefix(filename, ".."+string(filepath.Separator)) {
				return "", fmt.Errorf("library '%s' is outside %s", name, dir)
			}
			bs, err := os.ReadFile(filepath.Join(dir, filename))
			if err != nil {
				return "", err
			}
			return string(bs), nil
		case "http", "https":
			return fetch(ctx, name)
		default:
			return "", fmt.Errorf("unknown protocol '%s'", proto)
		}
	}
}

func fetch(ctx context.Context, name string) (string, error) {
	util.Logf("fetching library %s", name)

	client, err := util.NewHTTPClient(LibraryFetchTimeout)
	if err != nil {
		return "", err
	}
	defer client.CloseIdleConnections()

	req, err := http.NewRequestWithContext(ctx, "GET", name, nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		bs, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", err
		}
		return string(bs), nil
	default:
		return "", fmt.Errorf("library fetch status %s %d",
			resp.Status, resp.StatusCode)
	}
}

// MakeMapLibraryProvider serves libraries from the given map.
func MakeMapLibraryProvider(srcs map[string]string) LibraryProvider {
	return func(ctx context.Context, r *Runtime, name string) (string, error) {
		src, have := srcs[name]
		if !have {
			return "", fmt.Errorf("undefined library '%s'", name)
		}
		return src, nil
	}
}

// MakeStoreLibraryProvider serves "store://name" from the given
// Store.  Other names go to the fallback, which can be nil.
func MakeStoreLibraryProvider(s storage.Store, fallback LibraryProvider) LibraryProvider {
	return func(ctx context.Context, r *Runtime, name string) (string, error) {
		if proto, rest, err := scheme(name); err == nil && proto == "store" {
			lib, err := s.Get(ctx, rest)
			if err != nil {
				return "", err
			}
			return lib.Source, nil
		}
		if fallback == nil {
			return "", fmt.Errorf("undefined library '%s'", name)
		}
		return fallback(ctx, r, name)
	}
}

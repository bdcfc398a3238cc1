// Package pypi provides an HTTP client for the Python Package Index JSON API.
//
// # Overview
//
// Packages that no name-mapping source knows are installed with pip. Before
// handing them over, condapip asks PyPI (https://pypi.org) whether the
// package exists and whether any release satisfies the requested version
// constraints, so that typos fail early with a clear message instead of a
// pip traceback.
//
// # Usage
//
//	client := pypi.NewClient(fileCache, 24*time.Hour)
//
//	pkg, err := client.FetchPackage(ctx, "aaargh", false) // false = use cache
//	if errors.Is(err, integrations.ErrNotFound) {
//	    // not on PyPI
//	}
//	fmt.Println(pkg.Name, pkg.Latest(spec.MustParse("aaargh>=0.7")))
//
// # Caching
//
// Responses are cached under the "pypi:" key prefix. Pass refresh=true to
// [Client.FetchPackage] to bypass the cache.
package pypi

// Package anaconda provides an HTTP client for the anaconda.org package API.
//
// # Overview
//
// The API answers "does channel C carry package N?" via
// GET /package/<channel>/<name>. condapip uses this as an identity-mapping
// probe: when no curated mapping knows a PyPI name, a conda package with the
// same normalized name on the configured channel is assumed to be the same
// project.
//
// # Usage
//
//	client := anaconda.NewClient(fileCache, 24*time.Hour)
//	ok, err := client.Exists(ctx, "conda-forge", "numpy")
package anaconda

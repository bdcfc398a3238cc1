// Package pkg provides the libraries behind condapip.
//
// # Overview
//
// condapip installs PyPI packages into conda environments. Each requested
// specifier is translated into a conda specifier by looking its name up in
// an ordered list of name-mapping backends; mapped packages are installed by
// conda, the rest by pip running inside the environment.
//
//  1. [spec] - PyPI/conda specifier parsing and rendering
//  2. [mapping] - Name-mapping sources, the registry and the resolver
//  3. [prefix] - Reading the packages installed in a conda environment
//  4. [install] - Install plans and the conda/pip dispatcher
//  5. [integrations] - Cached HTTP clients for PyPI and anaconda.org
//  6. [server] - The translation HTTP API
//
// Supporting packages: [cache] (file, Redis and null caches), [errors]
// (coded errors and input validation), [observability] (hooks) and
// [buildinfo] (version information).
//
// # Data Flow
//
//	PyPI specifier ("build>=1")
//	         ↓
//	spec.Parse → mapping.Resolver (static → grayskull → cf-graph → anaconda)
//	         ↓
//	mapping.Resolution ("python-build>=1", native)
//	         ↓
//	install.NewPlan (skips what prefix.Data already satisfies)
//	         ↓
//	install.Dispatcher → conda install, then pip install
//
// [spec]: github.com/matzehuels/condapip/pkg/spec
// [mapping]: github.com/matzehuels/condapip/pkg/mapping
// [prefix]: github.com/matzehuels/condapip/pkg/prefix
// [install]: github.com/matzehuels/condapip/pkg/install
// [integrations]: github.com/matzehuels/condapip/pkg/integrations
// [server]: github.com/matzehuels/condapip/pkg/server
// [cache]: github.com/matzehuels/condapip/pkg/cache
// [errors]: github.com/matzehuels/condapip/pkg/errors
// [observability]: github.com/matzehuels/condapip/pkg/observability
// [buildinfo]: github.com/matzehuels/condapip/pkg/buildinfo
package pkg

/*
Copyright 2026 The glycin-go Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

     http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package glycin

import (
	"context"

	"glycin.dev/glycin/pkg/config"
	"glycin.dev/glycin/pkg/mimetype"
)

// KnownMimeTypes returns every MIME type with an installed loader.
// The first caller pays for the configuration scan; later callers
// observe the cache until RefreshLoaders.
func KnownMimeTypes() []mimetype.Type {
	return config.Default().MimeTypes(config.RoleLoader)
}

// KnownMimeTypesDeferred performs the first scan off the caller's
// thread when nobody has triggered it yet.
func KnownMimeTypesDeferred(ctx context.Context) *Future[[]mimetype.Type] {
	return deferCall(ctx, func(context.Context) ([]mimetype.Type, error) {
		return KnownMimeTypes(), nil
	})
}

// RefreshLoaders invalidates the loader registry; the next lookup
// rescans the configuration directories.
func RefreshLoaders() {
	config.Default().Refresh()
}

// SPDX-License-Identifier: MPL-2.0

// Package image assembles a runtime image: a copy of a base runtime tree with
// the deployment artifacts installed into it and a release manifest that
// records, per artifact, the source revision it was built from.
package image

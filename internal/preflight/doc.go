// Package preflight provides readiness checks for the filesystem paths and
// device driver the bridge depends on.
//
// These checks run in two contexts:
//   - The daemon runtime logs RunAll results at startup so a missing asset
//     directory or unreadable font shows up before the first frame arrives.
//   - The CLI "lcdbridge status" command renders the same results next to
//     the live daemon state.
//
// Optional paths (font, assets) are skipped when unset.
package preflight

// Package preflight provides readiness checks for external tools and
// filesystem paths the sync pipeline depends on.
//
// These checks run in two contexts:
//   - The daemon runs RunAll at startup and logs failures before the first
//     cycle, so a missing binary or unwritable directory is visible
//     immediately instead of surfacing as mid-cycle action failures.
//   - The CLI "chorus status" command uses the same results to display
//     environment health.
//
// Checks gated by a config toggle are skipped when the feature is disabled.
package preflight

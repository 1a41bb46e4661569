// Package preflight provides readiness checks for the filesystem paths a
// resolve run depends on.
//
// These checks run in two contexts:
//   - The workflow calls RunAll before loading input. If any check fails the
//     run stops before it spends time on a doomed pass.
//   - The CLI "fpmatch status" command displays the same results as a table.
//
// Optional outputs are only checked when configured.
package preflight

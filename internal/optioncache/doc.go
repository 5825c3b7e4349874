// Package optioncache memoizes the filter options and status counts shown
// by the CLI so listing commands avoid redundant aggregate queries.
package optioncache

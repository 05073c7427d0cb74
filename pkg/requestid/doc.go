// Package requestid tags admin API requests with a correlation id that ends
// up in every log record written while serving them.
package requestid

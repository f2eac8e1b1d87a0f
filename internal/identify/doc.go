// Package identify selects the best metadata match for a free-form movie
// request.
package identify

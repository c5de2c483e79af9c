package httpx

import (
	"net/http"
	"strconv"
)

// OwnerHeader carries the authenticated account id. Authentication
// itself is terminated upstream; handlers only need the resolved id.
const OwnerHeader = "X-Owner-ID"

// OwnerID extracts the owner id from the request.
func OwnerID(r *http.Request) (int64, error) {
	raw := r.Header.Get(OwnerHeader)
	if raw == "" {
		return 0, ErrValidation
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrValidation
	}
	return id, nil
}

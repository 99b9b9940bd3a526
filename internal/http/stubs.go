package httpx

import "net/http"

// FeatureUnavailable answers every request with 501 for a route group that has no module yet.
func FeatureUnavailable(name string) http.Handler {
	return stubHandler(http.StatusNotImplemented, "feature_unavailable", name)
}

// ComponentUnavailable answers every request with 503 for a route group whose dependencies failed.
func ComponentUnavailable(name string) http.Handler {
	return stubHandler(http.StatusServiceUnavailable, "component_unavailable", name)
}

func stubHandler(code int, errCode, name string) http.Handler {
	body := map[string]string{"error": errCode, "component": name}
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, code, body)
	})
}

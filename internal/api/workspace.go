package api

import (
	"net/http"
	"strconv"
)

// WorkspaceHeader carries the caller's workspace id. Workspace resolution
// is deliberately explicit: handlers extract the id here and pass it down
// as a parameter, so services never read ambient tenant state.
const WorkspaceHeader = "X-Workspace-ID"

// workspaceID extracts the workspace id from the request header, falling
// back to the workspace_id query parameter. Returns false if absent or not
// a positive integer.
func workspaceID(r *http.Request) (int64, bool) {
	raw := r.Header.Get(WorkspaceHeader)
	if raw == "" {
		raw = r.URL.Query().Get("workspace_id")
	}
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

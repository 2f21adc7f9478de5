package dto

// RunResponse mirrors one screener run snapshot for polling clients.
type RunResponse struct {
	RunID           string `json:"run_id"`
	PropertyID      int64  `json:"property_id"`
	Status          string `json:"status"`
	CurrentStep     string `json:"current_step"`
	ProgressPercent int    `json:"progress_percent"`
	ReportPath      string `json:"report_path,omitempty"`
	ErrorMessage    string `json:"error_message,omitempty"`
	StartedAt       string `json:"started_at"`
	CompletedAt     string `json:"completed_at,omitempty"`
}

type ListRunsResponse struct {
	Runs []RunResponse `json:"runs"`
}

type ListPropertiesRequest struct {
	State          string `form:"state"`
	NeedsManualFix *bool  `form:"needs_manual_fix"`
	PageSize       int    `form:"page_size"`
	Cursor         string `form:"cursor"`
}

type PropertyDTO struct {
	ID             int64    `json:"id"`
	Name           string   `json:"name"`
	Address        string   `json:"address"`
	City           string   `json:"city"`
	State          string   `json:"state"`
	Zip            string   `json:"zip"`
	Lat            *float64 `json:"lat,omitempty"`
	Lon            *float64 `json:"lon,omitempty"`
	NeedsManualFix bool     `json:"needs_manual_fix"`
	CreatedAt      string   `json:"created_at"`
	UpdatedAt      string   `json:"updated_at"`
}

type ListPropertiesResponse struct {
	Properties []PropertyDTO `json:"properties"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

// ParcelResponse is the stored parcel geometry for a property.
type ParcelResponse struct {
	PropertyID int64        `json:"property_id"`
	Lat        float64      `json:"lat"`
	Lon        float64      `json:"lon"`
	Zoom       int          `json:"zoom"`
	Polygon    [][2]float64 `json:"polygon,omitempty"`
	Provenance string       `json:"provenance"`
}

// ManualParcelRequest is an operator-submitted boundary correction. The
// polygon is optional; a centroid-only fix pins the map without an outline.
type ManualParcelRequest struct {
	Lat     float64      `json:"lat" binding:"required"`
	Lon     float64      `json:"lon" binding:"required"`
	Zoom    int          `json:"zoom"`
	Polygon [][2]float64 `json:"polygon"`
}

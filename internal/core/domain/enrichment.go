package domain

// EnrichmentRecord is a partner-service profile for one subject. Courses maps
// a course name to its lesson strings; Lessons and Group are flat lists.
type EnrichmentRecord struct {
	SubjectID         int64               `json:"tg_id"`
	UserID            int64               `json:"user_id"`
	Nickname          string              `json:"ph_nickname"`
	Username          string              `json:"ph_username"`
	AuthorizationDate string              `json:"authorization_date"`
	LastVisitDate     string              `json:"last_visit_date"`
	Referer           string              `json:"referer"`
	UTM               *UTMData            `json:"utm"`
	Group             []string            `json:"group"`
	Courses           map[string][]string `json:"courses"`
	Lessons           []string            `json:"lessons"`
}

// UTMData carries acquisition attributes reported by the partner service.
type UTMData struct {
	Medium   string `json:"utm_medium"`
	Source   string `json:"utm_source"`
	Campaign string `json:"utm_campaign"`
	Content  string `json:"utm_content"`
	Term     string `json:"utm_term"`
}

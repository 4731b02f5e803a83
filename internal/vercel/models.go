package vercel

import "encoding/json"

// Project is a snapshot of a Vercel project as returned by the API.
// Only id and name are guaranteed to be present; everything else varies
// by API version and must decode permissively.
type Project struct {
	ID                string              `json:"id"`
	Name              string              `json:"name"`
	AccountID         string              `json:"accountId,omitempty"`
	Framework         string              `json:"framework,omitempty"`
	CreatedAt         *int64              `json:"createdAt,omitempty"`
	UpdatedAt         *int64              `json:"updatedAt,omitempty"`
	NodeVersion       string              `json:"nodeVersion,omitempty"`
	LatestDeployments []DeploymentSummary `json:"latestDeployments,omitempty"`
}

// DeploymentSummary is the abbreviated deployment info embedded in
// project listings.
type DeploymentSummary struct {
	ID         string `json:"id"`
	URL        string `json:"url,omitempty"`
	ReadyState string `json:"readyState,omitempty"`
	CreatedAt  *int64 `json:"createdAt,omitempty"`
}

// Deployment is a full deployment record. Timestamps are epoch
// milliseconds. Meta is kept opaque; its shape is framework-dependent.
type Deployment struct {
	UID        string          `json:"uid"`
	Name       string          `json:"name"`
	URL        string          `json:"url"`
	ReadyState string          `json:"readyState,omitempty"`
	State      string          `json:"state,omitempty"`
	Created    *int64          `json:"created,omitempty"`
	BuildingAt *int64          `json:"buildingAt,omitempty"`
	Ready      *int64          `json:"ready,omitempty"`
	ProjectID  string          `json:"projectId,omitempty"`
	Creator    *Creator        `json:"creator,omitempty"`
	Meta       json.RawMessage `json:"meta,omitempty"`
	Target     string          `json:"target,omitempty"`
	Source     string          `json:"source,omitempty"`
}

// UnmarshalJSON accepts either "uid" or "id" as the deployment identity
// field. Some API versions emit one, some the other; "uid" wins when
// both are present.
func (d *Deployment) UnmarshalJSON(data []byte) error {
	type deployment Deployment
	aux := struct {
		*deployment
		AltID string `json:"id"`
	}{deployment: (*deployment)(d)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if d.UID == "" {
		d.UID = aux.AltID
	}
	return nil
}

// Creator identifies who triggered a deployment.
type Creator struct {
	UID      string `json:"uid,omitempty"`
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
}

// DeploymentEvent is one build/runtime log line. Events carry no
// identity; ordering follows the API response.
type DeploymentEvent struct {
	Type    string          `json:"type"`
	Created *int64          `json:"created,omitempty"`
	Text    string          `json:"text,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// User is the authenticated Vercel account.
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email,omitempty"`
	Name     string `json:"name,omitempty"`
	Username string `json:"username,omitempty"`
}

package domain

// Employee mirrors an employee record owned by the ReAI platform. It is
// resolved per request and never persisted locally.
type Employee struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
	Department string `json:"department,omitempty"`
	TenantID   *int64 `json:"tenantId,omitempty"`
}

// Project mirrors a ReAI project.
type Project struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	TenantID *int64 `json:"tenantId,omitempty"`
}

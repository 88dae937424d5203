package dynatrace

// Upstream response payloads. Only the fields the aggregation engine
// reads are modelled; everything else is ignored during decoding.

// EntitiesResponse is the payload of GET /api/v2/entities.
type EntitiesResponse struct {
	TotalCount int      `json:"totalCount"`
	Entities   []Entity `json:"entities"`
}

// Entity is a monitored object (service, host or process group).
type Entity struct {
	EntityID          string            `json:"entityId"`
	DisplayName       string            `json:"displayName"`
	Properties        EntityProperties  `json:"properties"`
	FromRelationships EntityRelations   `json:"fromRelationships"`
	Tags              []Tag             `json:"tags"`
	ManagementZones   []ManagementZone  `json:"managementZones"`
}

// EntityProperties carries the structured detail fields used for
// technology inference, service state and host OS extraction.
type EntityProperties struct {
	SoftwareTechnologies []TechnologyInfo `json:"softwareTechnologies"`
	Monitoring           *MonitoringInfo  `json:"monitoring"`
	OsType               string           `json:"osType"`
	OsVersion            string           `json:"osVersion"`
	KernelVersion        string           `json:"kernelVersion"`
}

// EntityRelations carries outgoing relationships of an entity.
type EntityRelations struct {
	SoftwareTechnologies []TechnologyInfo `json:"softwareTechnologies"`
}

// TechnologyInfo identifies one detected technology.
type TechnologyInfo struct {
	Type    string `json:"type"`
	Version string `json:"version,omitempty"`
}

// MonitoringInfo carries the monitoring state of a service.
type MonitoringInfo struct {
	MonitoringState string `json:"monitoringState"`
}

// Tag is a key/value label attached to an entity.
type Tag struct {
	Key   string `json:"key"`
	Value string `json:"value,omitempty"`
}

// ManagementZone is a named entity grouping.
type ManagementZone struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// MetricsResponse is the payload of GET /api/v2/metrics/query.
type MetricsResponse struct {
	Result []MetricCollection `json:"result"`
}

// MetricCollection groups the series returned for one metric selector.
type MetricCollection struct {
	MetricID string         `json:"metricId"`
	Data     []MetricSeries `json:"data"`
}

// MetricSeries is one dimension tuple with its sampled values.
// Values may contain nulls for missing samples.
type MetricSeries struct {
	Dimensions []string   `json:"dimensions"`
	Timestamps []int64    `json:"timestamps"`
	Values     []*float64 `json:"values"`
}

// ProblemsResponse is the payload of GET /api/v2/problems.
type ProblemsResponse struct {
	TotalCount int       `json:"totalCount"`
	Problems   []Problem `json:"problems"`
}

// Problem is an upstream-raised incident.
type Problem struct {
	ProblemID       string           `json:"problemId"`
	DisplayID       string           `json:"displayId"`
	Title           string           `json:"title"`
	Description     string           `json:"description,omitempty"`
	ImpactLevel     string           `json:"impactLevel"`
	SeverityLevel   string           `json:"severityLevel"`
	Status          string           `json:"status"`
	ResolutionState string           `json:"resolutionState,omitempty"`
	StartTime       int64            `json:"startTime"`
	EndTime         int64            `json:"endTime"`
	ManagementZones []ManagementZone `json:"managementZones"`
	AffectedEntities []AffectedEntity `json:"affectedEntities"`
	ImpactedEntities []AffectedEntity `json:"impactedEntities"`
}

// AffectedEntity references an entity touched by a problem.
type AffectedEntity struct {
	EntityID        EntityStub       `json:"entityId"`
	Name            string           `json:"name"`
	ManagementZones []ManagementZone `json:"managementZones"`
}

// EntityStub is a minimal entity reference.
type EntityStub struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// ManagementZonesConfigResponse is the payload of
// GET /api/config/v1/managementZones.
type ManagementZonesConfigResponse struct {
	Values []ManagementZone `json:"values"`
}

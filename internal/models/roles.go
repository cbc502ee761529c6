package models

// Known shop roles. Eligibility checks compare raw strings so upstream can
// introduce roles without touching the engine; these constants cover the
// declared workflows and the administrative gate.
const (
	RoleForeman     = "foreman"
	RoleDelivery    = "delivery"
	RoleRequester   = "requester"
	RoleStorekeeper = "storekeeper"
	RoleManager     = "manager"
)

// Package users provides user management and authentication primitives for
// insurance backends: registration, JWT login, profile self-service, admin
// CRUD, suspension workflows, and durable audit logging of sensitive actions.
//
// Authorization policy:
//   - Every mutating operation is gated through an Authorizer. Roles are a
//     fixed closed set (ADMIN, CLIENT, INTERVENTORIA, SUPERVISOR) and the rule
//     table lives in one place (policy.go) so it can be tested in isolation.
//   - Self-service updates are restricted to an explicit field allow-list;
//     requests touching prohibited fields fail atomically with the offending
//     field names.
//
// Lifecycle:
//   - Users carry a UserStatus (active/suspended) persisted via Bun. The
//     LifecycleService centralizes transitions, keeps suspend/activate
//     idempotent, and emits one audit event per actual transition.
//
// Audit logging:
//   - AuditLogger records append-only events best-effort: failures are logged
//     and swallowed so auditing can never break the primary operation. Forward
//     to a database or queue by supplying your own implementation.
package users

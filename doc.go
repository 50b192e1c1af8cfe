// Package insurai is the access control and claim lifecycle core of an
// insurance claims portal.
//
// Access control:
//   - TokenService issues HS256 identity tokens carrying the subject email and
//     one of the ADMIN, HR, EMPLOYEE or AGENT roles. Verification depends only
//     on the signing key, the token and the current time.
//   - AuthorizationGate reads the Authorization header and admits a call only
//     when the token role equals the required role. There is no hierarchy, an
//     ADMIN token is rejected on HR routes.
//
// Claims:
//   - ClaimLifecycleManager owns the SUBMITTED, UNDER_REVIEW, APPROVED and
//     REJECTED state machine, the fraud overlay and HR assignment. Status
//     changes are compare-and-set writes so concurrent transitions on one
//     claim cannot both succeed.
//   - Audit and notification run as post-commit hooks. Their failures are
//     reported to a SideEffectErrorHandler and never undo a transition.
//
// Notifications:
//   - AsyncDispatcher queues role-targeted events and delivers them through
//     NotificationChannel implementations on a worker pool. One failed
//     delivery does not affect any other queued event.
package insurai

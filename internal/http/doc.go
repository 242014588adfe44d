// Package http exposes the booking engine over a JSON API for the chat layer.
//
// Every /v1 endpoint requires `Authorization: Bearer <token>` and an
// `X-Carebook-Handle` header naming the chat user acting. The handle is
// case-folded before use. Except for PUT /v1/users/me, the handle must belong
// to a registered user.
//
//   - PUT /v1/users/me, GET /v1/users/me, POST /v1/users/me/elevate: user
//     registration and admin elevation, exchanging `userDTO`.
//   - GET /v1/persons/self, GET /v1/persons, POST /v1/persons: person
//     directory, exchanging `personDTO`.
//   - GET /v1/persons/{personID}/bookings: a person's bookings in start order.
//   - GET /v1/activities, POST /v1/activities, GET /v1/activities/{activityID},
//     GET /v1/activities/{activityID}/roster: catalog and roster, exchanging
//     `activityDTO` and `rosterEntryDTO`.
//   - POST /v1/bookings, DELETE /v1/bookings/{activityID}/{personID},
//     PUT .../caregiver, PUT .../confirmation: the booking ledger.
//
// Errors share one body shape, `errorResponse`. Overlap failures carry the
// conflicting activity in `conflict`.
package http

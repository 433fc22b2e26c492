// Package identity owns gatekeep's users and their linked OAuth accounts.
//
// Sessions reference users only by ID; the session manager asks this package
// whether a user still exists before honoring a session.
package identity

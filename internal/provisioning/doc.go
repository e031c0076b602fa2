// Package provisioning issues broker credentials for newly paired pots.
//
// The broker's auth plugin listens on a management topic (users/add by
// default) and creates a login from each published
// {"username":...,"password":...} payload. The pot id becomes the
// username; the password is generated here, shown to the pairing user
// once, and never stored by the backend.
//
// Publishing rides a dedicated one-shot connection with a clean session:
// credential issuance must not share the service connection's persistent
// session state, and a crashed issuance must leave nothing behind on the
// broker.
package provisioning

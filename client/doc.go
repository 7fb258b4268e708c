// Package client is a Go SDK for the procureauth HTTP API.
//
// An AuthContext behaves like one browser session: it keeps the auth and
// CSRF cookies in its own jar, echoes the CSRF cookie on unsafe requests and
// attaches the MFA-verified token once one has been obtained. A request
// rejected for an expired session is retried once after a refresh, and a
// request rejected by the CSRF guard is retried once after fetching a new
// token.
//
//	ac, err := client.New("https://erp.example.com/api")
//	if err != nil {
//		return err
//	}
//	defer ac.Close()
//	sess, err := ac.Login(ctx, "alice", password, true)
package client

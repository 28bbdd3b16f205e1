// Package auth protects the operator HTTP API with HS256 JWTs.
//
// Tokens are minted by "printauth token --name NAME" from the configured
// auth.jwt_secret and carry the operator name in the sub claim. RequireToken
// verifies them and stores the operator on the request context.
package auth

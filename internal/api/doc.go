// Package api provides a client for the Bybit v5 REST API.
//
// REST endpoints:
//   - Production: https://api.bybit.com
//   - Testnet: https://api-testnet.bybit.com
//
// Only the market endpoints needed to discover symbols and the key
// information endpoint used to check private credentials are covered.
package api

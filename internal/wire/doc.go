// Package wire encodes outbound op frames and decodes inbound Bybit v5
// WebSocket frames.
//
// Inbound frames come in two shapes:
//   - topic frames: {"topic":..,"type":..,"ts":..,"data":..}
//   - op acknowledgments: {"success":..,"ret_msg":..,"req_id":..,"op":..}
//
// Prices in decoded market payloads are shopspring decimals.
package wire

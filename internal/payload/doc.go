// Package payload holds the application messages carried inside DATA frames.
//
// Messages use protobuf wire format and stay byte-compatible with the prism
// packet schema:
//
//	DataPacket { int32 type = 1; oneof { Login login = 2; AuthResponse auth_response = 3; Update update = 4; } }
//	Login { string service = 1; string token = 2; }
//	AuthResponse { int32 status = 1; string message = 2; }
//	Update { string name = 1; string value = 2; string type = 3; bool persist_cache = 4; }
//
// Ownership boundary:
// - message types and their wire encoding
// - Router, a session.Handler that decodes DataPackets and fans out by type
package payload

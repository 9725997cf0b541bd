// Copyright 2024 Matt Schultz <schultz@sent.com>. All rights reserved.
// Use of this source code is governed by an ISC license that can be found in the LICENSE file.

/*
Package rcon provides a client for the RCON remote console protocol spoken by Minecraft and Source
engine servers, as described by Valve Software at
https://developer.valvesoftware.com/wiki/Source_RCON_Protocol.

Packets are length-prefixed little-endian frames:

	offset 0:  size    int32 (= 8 + len(payload))
	offset 4:  id      int32
	offset 8:  type    int32
	offset 12: payload text followed by two null bytes

A session is opened with [Connect], which dials the server and authorizes with the password, and
then issues commands with [Client.ExecCommand]. Responses that the server splits across several
packets are reassembled by following every command with an empty request whose response marks the
end of the output.
*/
package rcon

/*
Package tenant resolves ingress messages to the tenant key that owns them.

Resolution consults, in order, stopping at the first hit:

 1. The session index, when the message carries a sessionId
 2. The thread mapping, when the extracted thread is already bound
 3. The static tenant-config table, keyed by sender identity
 4. The reserved default tenant ("default","unknown"), marking the
    message unresolved

The repository URL always comes from the tenant-config table, whichever
step resolved the tenant; tenants without a configured repository are
flagged MissingConfig and still routed.

The resolver also owns thread-mapping upkeep: the first message of a
thread binds it to the resolved tenant permanently (conditional insert in
the store), and follow-ups bump lastActivityAt and messageCount only. A
thread, once seen, maps to exactly one tenant for the rest of its life.
*/
package tenant

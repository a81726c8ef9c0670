// Package flagrelay provides a resilient TCP client built for flag-relay
// pipelines: bounded and classified connect retries, deadline-driven partial,
// eager and line-oriented reads, candidate server failover, and a
// reconnect-and-retry wrapper for request/response exchanges.
//
// A Client owns exactly one logical connection at a time. It is NOT safe for
// concurrent use: operations mutate the underlying socket and are not
// reentrant. A process that needs several independent outbound connections
// should construct one Client per goroutine, or check exclusive instances out
// of a ClientPool.
//
// Every socket-level failure is translated to one of three error kinds before
// it leaves this package: ConnectTimeoutError, ReadTimeoutError, or
// ConnectionError wrapping the underlying cause. Raw OS errors never escape.
// Clean EOF is reported as io.EOF alongside any bytes read so far, so callers
// can distinguish "server closed the connection" from "the connection broke".
//
// Basic usage:
//
//	client, err := flagrelay.NewClient(flagrelay.Config{
//		Servers:     []string{"gameserver-1:31337", "gameserver-2:31337"},
//		ReadTimeout: 5 * time.Second,
//	})
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	err = client.RetryOnConnectionFailure(func(c *flagrelay.Client) error {
//		if err := c.Write([]byte(flag + "\n")); err != nil {
//			return err
//		}
//		verdict, err := c.ReadLine(0)
//		if err != nil {
//			return err
//		}
//		return handle(verdict)
//	})
package flagrelay

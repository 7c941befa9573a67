//go:build libpq

package pqclient

/*
#cgo pkg-config: libpq
#include <stdlib.h>
#include <libpq-fe.h>
*/
import "C"

import "unsafe"

// The cgo binding to the real client library. Built only with -tags libpq,
// since it needs the libpq development headers.

func init() {
	newDefaultDriver = func() (Driver, error) {
		return libpqDriver{}, nil
	}
}

type libpqDriver struct{}

func (libpqDriver) ConnectDB(conninfo string) RawConn {
	cs := C.CString(conninfo)
	defer C.free(unsafe.Pointer(cs))
	return &libpqConn{handle: C.PQconnectdb(cs)}
}

type libpqConn struct {
	handle *C.PGconn
}

func (c *libpqConn) Status() ConnStatus {
	return ConnStatus(C.PQstatus(c.handle))
}

func (c *libpqConn) Exec(query string) RawResult {
	cq := C.CString(query)
	defer C.free(unsafe.Pointer(cq))
	res := C.PQexec(c.handle, cq)
	if res == nil {
		return nil
	}
	return &libpqResult{handle: res}
}

func (c *libpqConn) ErrorMessage() string {
	return C.GoString(C.PQerrorMessage(c.handle))
}

func (c *libpqConn) Finish() {
	C.PQfinish(c.handle)
	c.handle = nil
}

type libpqResult struct {
	handle *C.PGresult
}

func (r *libpqResult) Status() ResultStatus {
	return ResultStatus(C.PQresultStatus(r.handle))
}

func (r *libpqResult) Clear() {
	C.PQclear(r.handle)
	r.handle = nil
}

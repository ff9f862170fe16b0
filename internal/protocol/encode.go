package protocol

// AppendResponse appends the wire form of resp to dst.
func AppendResponse(dst []byte, resp Response) []byte {
	switch resp.Status {
	case StatusDone:
		return append(dst, "DONE$"...)
	case StatusFound:
		dst = append(dst, "FOUND$"...)
		dst = append(dst, resp.Value...)
		return append(dst, Delimiter)
	default:
		return append(dst, "NOTFOUND$"...)
	}
}

// EncodeResponse returns the wire form of resp.
func EncodeResponse(resp Response) []byte {
	return AppendResponse(nil, resp)
}

// AppendRequest appends the wire form of req to dst. The caller is
// responsible for req holding valid fields.
func AppendRequest(dst []byte, req Request) []byte {
	switch req.Kind {
	case KindStore:
		dst = append(dst, "STORE$"...)
		dst = append(dst, req.Key...)
		dst = append(dst, Delimiter)
		dst = append(dst, req.Value...)
		return append(dst, Delimiter)
	default:
		dst = append(dst, "LOAD$"...)
		dst = append(dst, req.Key...)
		return append(dst, Delimiter)
	}
}

// EncodeRequest returns the wire form of req.
func EncodeRequest(req Request) []byte {
	return AppendRequest(nil, req)
}

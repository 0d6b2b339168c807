package media

// hasEXIF reports whether a JPEG byte stream carries an EXIF APP1
// segment, by walking JPEG markers directly rather than parsing the TIFF
// payload. No EXIF library appears anywhere in the retrieved pack, so
// this stays on the standard library per DESIGN.md's justification: a
// presence check needs only the segment marker and the "Exif\0\0"
// identifier, not a full tag decode.
func hasEXIF(data []byte) bool {
	const (
		markerStart = 0xFF
		soiMarker   = 0xD8
		app1Marker  = 0xE1
	)
	if len(data) < 4 || data[0] != markerStart || data[1] != soiMarker {
		return false
	}

	pos := 2
	for pos+4 <= len(data) {
		if data[pos] != markerStart {
			pos++
			continue
		}
		marker := data[pos+1]
		if marker == 0x01 || (marker >= 0xD0 && marker <= 0xD9) {
			// Markers without a length-prefixed payload.
			pos += 2
			continue
		}
		if pos+4 > len(data) {
			break
		}
		segmentLen := int(data[pos+2])<<8 | int(data[pos+3])
		if segmentLen < 2 {
			break
		}
		if marker == app1Marker {
			payloadStart := pos + 4
			if payloadStart+6 <= len(data) && string(data[payloadStart:payloadStart+6]) == "Exif\x00\x00" {
				return true
			}
		}
		if marker == 0xDA { // start of scan: image data follows, no more markers of interest
			break
		}
		pos += 2 + segmentLen
	}
	return false
}

package sthree

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/oneconcern/irmin/pkg/errors"
	"github.com/oneconcern/irmin/pkg/storage/status"
	"github.com/stretchr/testify/assert"
)

func TestToSentinelErrors(t *testing.T) {
	for _, toPin := range []struct {
		Name     string
		Code     string
		Status   int
		Expected error
	}{
		{Name: "no such key", Code: "NoSuchKey", Status: http.StatusNotFound, Expected: status.ErrNotExists},
		{Name: "minio not found", Code: "NotFound", Status: http.StatusNotFound, Expected: status.ErrNotExists},
		{Name: "other 404", Code: "NoSuchUpload", Status: http.StatusNotFound, Expected: status.ErrNotFound},
		{Name: "bad bucket", Code: "InvalidBucketName", Status: http.StatusBadRequest, Expected: status.ErrInvalidResource},
		{Name: "unauthorized", Code: "Unauthorized", Status: http.StatusUnauthorized, Expected: status.ErrUnauthorized},
		{Name: "forbidden", Code: "AccessDenied", Status: http.StatusForbidden, Expected: status.ErrForbidden},
		{Name: "throttled", Code: "SlowDown", Status: http.StatusServiceUnavailable, Expected: status.ErrStorageAPI},
	} {
		fixture := toPin
		t.Run(fixture.Name, func(t *testing.T) {
			awsErr := awserr.NewRequestFailure(awserr.New(fixture.Code, "test", nil), fixture.Status, "req-1")
			assert.True(t, errors.Is(toSentinelErrors(awsErr), fixture.Expected))
		})
	}

	assert.NoError(t, filterErrNotExists(toSentinelErrors(awserr.NewRequestFailure(awserr.New("NoSuchKey", "", nil), 404, ""))))
	plain := fmt.Errorf("plain")
	assert.Equal(t, plain, toSentinelErrors(plain))
}

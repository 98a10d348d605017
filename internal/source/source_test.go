package source_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/ff-inspection-warehouse/internal/adapter"
	"github.com/feral-file/ff-inspection-warehouse/internal/domain"
	"github.com/feral-file/ff-inspection-warehouse/internal/mocks"
	"github.com/feral-file/ff-inspection-warehouse/internal/source"
)

func TestFileLoader_Load(t *testing.T) {
	ctrl := gomock.NewController(t)
	fs := mocks.NewMockFileSystem(ctrl)
	loader := source.NewFileLoader("bronze", fs, adapter.NewJSON())

	fs.EXPECT().Glob("bronze/*.json").Return([]string{"bronze/sf.json", "bronze/chicago.json"}, nil)
	fs.EXPECT().ReadFile("bronze/chicago.json").Return([]byte(`{
		"source_city": "chicago",
		"declared_count": 3,
		"records": [{"inspection_id": 2345678, "dba_name": "Joe's Diner"}]
	}`), nil)
	fs.EXPECT().ReadFile("bronze/sf.json").Return([]byte(`{
		"source_city": "sf",
		"records": [{"inspection_id": "1_20210110"}, {"inspection_id": "2_20210110"}]
	}`), nil)

	batches, err := loader.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, batches, 2)

	// File name order
	assert.Equal(t, domain.SourceCityChicago, batches[0].SourceCity)
	assert.Equal(t, 3, batches[0].DeclaredCount)
	require.Len(t, batches[0].Records, 1)
	assert.Equal(t, json.Number("2345678"), batches[0].Records[0].Fields["inspection_id"])

	assert.Equal(t, domain.SourceCitySanFrancisco, batches[1].SourceCity)
	assert.Equal(t, 2, batches[1].DeclaredCount)
}

func TestFileLoader_Errors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(fs *mocks.MockFileSystem)
	}{
		{
			name: "glob fails",
			setup: func(fs *mocks.MockFileSystem) {
				fs.EXPECT().Glob(gomock.Any()).Return(nil, errors.New("bad pattern"))
			},
		},
		{
			name: "read fails",
			setup: func(fs *mocks.MockFileSystem) {
				fs.EXPECT().Glob(gomock.Any()).Return([]string{"bronze/a.json"}, nil)
				fs.EXPECT().ReadFile("bronze/a.json").Return(nil, errors.New("permission denied"))
			},
		},
		{
			name: "malformed json",
			setup: func(fs *mocks.MockFileSystem) {
				fs.EXPECT().Glob(gomock.Any()).Return([]string{"bronze/a.json"}, nil)
				fs.EXPECT().ReadFile("bronze/a.json").Return([]byte(`{"source_city":`), nil)
			},
		},
		{
			name: "missing source city",
			setup: func(fs *mocks.MockFileSystem) {
				fs.EXPECT().Glob(gomock.Any()).Return([]string{"bronze/a.json"}, nil)
				fs.EXPECT().ReadFile("bronze/a.json").Return([]byte(`{"records":[]}`), nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			fs := mocks.NewMockFileSystem(ctrl)
			tt.setup(fs)

			_, err := source.NewFileLoader("bronze", fs, adapter.NewJSON()).Load(context.Background())
			assert.Error(t, err)
		})
	}
}

func TestFileLoader_DecodeErrorFromJSONAdapter(t *testing.T) {
	ctrl := gomock.NewController(t)
	fs := mocks.NewMockFileSystem(ctrl)
	js := mocks.NewMockJSON(ctrl)

	fs.EXPECT().Glob(gomock.Any()).Return([]string{"bronze/a.json"}, nil)
	fs.EXPECT().ReadFile("bronze/a.json").Return([]byte(`{}`), nil)
	js.EXPECT().Unmarshal([]byte(`{}`), gomock.Any()).Return(errors.New("boom"))

	_, err := source.NewFileLoader("bronze", fs, js).Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bronze/a.json")
}

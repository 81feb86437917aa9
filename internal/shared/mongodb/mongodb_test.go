package mongodb

import (
	"testing"
)

func TestValidateMongoURI(t *testing.T) {
	tests := []struct {
		name    string
		uri     string
		wantErr bool
	}{
		{
			name:    "valid mongodb URI",
			uri:     "mongodb://localhost:27017",
			wantErr: false,
		},
		{
			name:    "valid mongodb+srv URI",
			uri:     "mongodb+srv://cluster.mongodb.net",
			wantErr: false,
		},
		{
			name:    "empty URI",
			uri:     "",
			wantErr: true,
		},
		{
			name:    "invalid scheme",
			uri:     "http://localhost:27017",
			wantErr: true,
		},
		{
			name:    "invalid scheme - postgres",
			uri:     "postgres://localhost:5432",
			wantErr: true,
		},
		{
			name:    "missing host",
			uri:     "mongodb://",
			wantErr: true,
		},
		{
			name:    "malformed URI",
			uri:     "not-a-valid-uri",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateMongoURI(tt.uri)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateMongoURI() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewMongoClientValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{
			name: "empty URI",
			cfg:  Config{URI: "", Database: "billing_reminder"},
		},
		{
			name: "wrong scheme",
			cfg:  Config{URI: "http://localhost:27017", Database: "billing_reminder"},
		},
		{
			name: "empty database name",
			cfg:  Config{URI: "mongodb://localhost:27017", Database: ""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewMongoClient(&tt.cfg); err == nil {
				t.Error("NewMongoClient() expected validation error, got nil")
			}
		})
	}
}

package config

import "testing"

func TestStaticSourceReturnsConfiguredCredentials(t *testing.T) {
	want := Credentials{BrokerURI: "tcp://broker:1883", TopicPrefix: "pool1"}
	s := StaticSource{Credentials: want}

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if got != want {
		t.Fatalf("Load() = %+v, want %+v", got, want)
	}
}

func TestDefaultsFallsBackToSpecPrefix(t *testing.T) {
	d := Defaults()
	if d.TopicPrefix != DefaultTopicPrefix {
		t.Fatalf("Defaults().TopicPrefix = %q, want %q", d.TopicPrefix, DefaultTopicPrefix)
	}
}

// Package config provides configuration parsing for SSR projects.
//
// The configuration is stored in ssr.json (or ssr.yaml) at the project root.
// This package handles loading, defaulting and validating it; the resolved
// Config is read-only afterwards and passed explicitly to the renderer and
// the prerender orchestrator.
//
// # Configuration File Structure
//
//	{
//	  "build": {
//	    "output": "dist"
//	  },
//	  "baseServer": "/",
//	  "baseAssets": "https://cdn.example.com/",
//	  "hookTimeout": "40s",
//	  "prerender": {
//	    "partial": false,
//	    "noExtraDir": false,
//	    "parallel": 4
//	  },
//	  "dev": {
//	    "host": "localhost",
//	    "port": 3000
//	  }
//	}
//
// The same keys are accepted in YAML. prerender.parallel accepts a boolean
// (true: one worker per CPU, false: serial) or a number.
package config

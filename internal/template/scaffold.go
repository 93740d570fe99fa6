package template

// Scaffold files written by the initial build, keyed by project-relative path.
const (
	ViteConfig = `import { defineConfig } from 'vite'
import react from '@vitejs/plugin-react'

export default defineConfig({
  plugins: [react()],
  server: {
    port: 3000,
    open: true
  },
  build: {
    outDir: 'dist',
    sourcemap: true
  }
})
`

	TailwindConfig = `/** @type {import('tailwindcss').Config} */
export default {
  content: [
    "./index.html",
    "./src/**/*.{js,ts,jsx,tsx}",
  ],
  theme: {
    extend: {
      colors: {
        primary: {
          50: '#f0f9ff',
          100: '#e0f2fe',
          500: '#0ea5e9',
          600: '#0284c7',
          700: '#0369a1',
        },
      },
    },
  },
  plugins: [],
}
`

	PostCSSConfig = `export default {
  plugins: {
    tailwindcss: {},
    autoprefixer: {},
  },
}
`

	IndexHTML = `<!doctype html>
<html lang="en">
  <head>
    <meta charset="UTF-8" />
    <link rel="icon" type="image/svg+xml" href="/vite.svg" />
    <meta name="viewport" content="width=device-width, initial-scale=1.0" />
    <title>{{title}}</title>
  </head>
  <body>
    <div id="root"></div>
    <script type="module" src="/src/main.tsx"></script>
  </body>
</html>
`

	MainTSX = `import React from 'react'
import ReactDOM from 'react-dom/client'
import App from './App.tsx'
import './index.css'

ReactDOM.createRoot(document.getElementById('root')!).render(
  <React.StrictMode>
    <App />
  </React.StrictMode>,
)
`

	IndexCSS = `@tailwind base;
@tailwind components;
@tailwind utilities;

:root {
  font-family: Inter, system-ui, Avenir, Helvetica, Arial, sans-serif;
  line-height: 1.5;
  font-weight: 400;
}

body {
  margin: 0;
  min-height: 100vh;
}
`

	AppTSX = `function App() {
  return (
    <div className="min-h-screen bg-gradient-to-br from-blue-50 to-indigo-100">
      <div className="container mx-auto px-4 py-16">
        <h1 className="text-4xl font-bold text-center text-gray-900 mb-8">
          {{title}}
        </h1>
        <p className="text-center text-gray-600">
          This application is being continuously improved by forgeloop.
        </p>
      </div>
    </div>
  )
}

export default App
`

	Readme = `# {{title}}

Generated by forgeloop.

## Development

    npm install
    npm run dev
`

	Gitignore = `node_modules/
dist/
.env
*.log
`

	EnvExample = `VITE_API_URL=http://localhost:3001/api
DATABASE_URL=
`
)

// Feature files written by the builder, keyed by feature generator.
const (
	Navigation = `import { useState } from 'react'
import { Menu, X } from 'lucide-react'

export default function Navigation() {
  const [isOpen, setIsOpen] = useState(false)

  return (
    <nav className="bg-white shadow-lg">
      <div className="container mx-auto px-4">
        <div className="flex justify-between items-center py-4">
          <div className="text-2xl font-bold text-primary-600">{{title}}</div>
          <div className="hidden md:flex space-x-6">
            <a href="#home" className="text-gray-700 hover:text-primary-600">Home</a>
            <a href="#about" className="text-gray-700 hover:text-primary-600">About</a>
            <a href="#services" className="text-gray-700 hover:text-primary-600">Services</a>
            <a href="#contact" className="text-gray-700 hover:text-primary-600">Contact</a>
          </div>
          <button className="md:hidden" onClick={() => setIsOpen(!isOpen)}>
            {isOpen ? <X /> : <Menu />}
          </button>
        </div>
      </div>
    </nav>
  )
}
`

	Hero = `export default function Hero() {
  return (
    <section className="bg-gradient-to-r from-primary-600 to-indigo-600 text-white py-20">
      <div className="container mx-auto px-4 text-center">
        <h1 className="text-5xl font-bold mb-4">{{title}}</h1>
        <p className="text-xl mb-8">Built with forgeloop</p>
        <button className="bg-white text-primary-600 px-8 py-3 rounded-lg font-semibold hover:bg-gray-100 transition">
          Get Started
        </button>
      </div>
    </section>
  )
}
`

	APIService = `import axios from 'axios'

const api = axios.create({
  baseURL: import.meta.env.VITE_API_URL || 'http://localhost:3001/api',
  headers: {
    'Content-Type': 'application/json',
  },
})

export default api
`

	PostgresConfig = `import pg from 'pg'

const pool = new pg.Pool({
  connectionString: process.env.DATABASE_URL || '{{database_url}}',
  ssl: {{database_ssl}}
})

export default pool
`

	MongoConfig = `import { MongoClient } from 'mongodb'

const client = new MongoClient(
  process.env.MONGODB_URI || '{{database_url}}'
)

export default client
`

	AuthStore = `import { create } from 'zustand'

interface User {
  id: string
  email: string
}

interface AuthState {
  user: User | null
  token: string | null
  login: (email: string, password: string) => Promise<void>
  logout: () => void
  isAuthenticated: () => boolean
}

export const useAuth = create<AuthState>((set, get) => ({
  user: null,
  token: null,
  login: async (email: string, password: string) => {
    const response = await fetch('/api/auth/login', {
      method: 'POST',
      headers: { 'Content-Type': 'application/json' },
      body: JSON.stringify({ email, password }),
    })
    const data = await response.json()
    set({ user: data.user, token: data.token })
  },
  logout: () => {
    set({ user: null, token: null })
  },
  isAuthenticated: () => {
    return get().token !== null
  },
}))
`

	GenericComponent = `export default function {{component}}() {
  return (
    <div className="p-4">
      <h2 className="text-2xl font-bold mb-4">{{feature}}</h2>
      <p>This component implements: {{feature}}</p>
    </div>
  )
}
`
)

// Scaffold maps template names to their embedded defaults. Project files are
// keyed by their relative path; feature files live under "features/".
var Scaffold = map[string]string{
	"vite.config.ts":     ViteConfig,
	"tailwind.config.js": TailwindConfig,
	"postcss.config.js":  PostCSSConfig,
	"index.html":         IndexHTML,
	"src/main.tsx":       MainTSX,
	"src/index.css":      IndexCSS,
	"src/App.tsx":        AppTSX,
	"README.md":          Readme,
	".gitignore":         Gitignore,
	".env.example":       EnvExample,

	"features/navigation.tsx": Navigation,
	"features/hero.tsx":       Hero,
	"features/api.ts":         APIService,
	"features/postgres.ts":    PostgresConfig,
	"features/mongo.ts":       MongoConfig,
	"features/auth.ts":        AuthStore,
	"features/component.tsx":  GenericComponent,
}
